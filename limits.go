package iwa

type Limits struct {
	MaxEntries            int
	MaxEntrySize          uint64 // uncompressed zip entry size
	MaxChunkSize          uint64 // declared uncompressed size of a single chunk
	MaxComponentSize      uint64 // decoded component size after all chunks
	MaxIterations         uint32 // key derivation rounds accepted from a package
	MaxMessagesPerArchive int
}

func defaultLimits() Limits {
	return Limits{
		MaxEntries:            100_000,
		MaxEntrySize:          1 << 30,  // 1 GiB
		MaxChunkSize:          16 << 20, // 16 MiB
		MaxComponentSize:      1 << 30,  // 1 GiB
		MaxIterations:         10_000_000,
		MaxMessagesPerArchive: 100_000,
	}
}

// DefaultLimits returns the limits applied when none are configured.
func DefaultLimits() Limits {
	return defaultLimits()
}

func (l Limits) withDefaults() Limits {
	d := defaultLimits()
	if l.MaxEntries == 0 {
		l.MaxEntries = d.MaxEntries
	}
	if l.MaxEntrySize == 0 {
		l.MaxEntrySize = d.MaxEntrySize
	}
	if l.MaxChunkSize == 0 {
		l.MaxChunkSize = d.MaxChunkSize
	}
	if l.MaxComponentSize == 0 {
		l.MaxComponentSize = d.MaxComponentSize
	}
	if l.MaxIterations == 0 {
		l.MaxIterations = d.MaxIterations
	}
	if l.MaxMessagesPerArchive == 0 {
		l.MaxMessagesPerArchive = d.MaxMessagesPerArchive
	}
	return l
}
