package iwa

import (
	"errors"
	"slices"
	"sync"
	"testing"
)

func TestRegistryResolvesFamilyTypes(t *testing.T) {
	cases := []struct {
		kind Kind
		typ  uint32
		name string
	}{
		{KindKeynote, 1, "KN.DocumentArchive"},
		{KindKeynote, 5, "KN.SlideArchive"},
		{KindKeynote, 200, "TSK.DocumentArchive"},
		{KindNumbers, 1, "TN.DocumentArchive"},
		{KindNumbers, 2, "TN.SheetArchive"},
		{KindPages, 10000, "TP.DocumentArchive"},
		{KindPages, 2001, "TSWP.StorageArchive"},
	}
	for _, tc := range cases {
		reg, err := RegistryFor(tc.kind)
		if err != nil {
			t.Fatal(err)
		}
		s, err := reg.ShapeFor(tc.typ)
		if err != nil {
			t.Fatalf("%s %d: %v", tc.kind, tc.typ, err)
		}
		if s.TypeName() != tc.name || s.MessageType != tc.typ {
			t.Fatalf("%s %d: got %s", tc.kind, tc.typ, s.TypeName())
		}
	}
}

func TestRegistryUnknownTypes(t *testing.T) {
	reg, err := RegistryFor(KindPages)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := reg.ShapeFor(1); !errors.Is(err, ErrUnknownMessageType) {
		t.Fatalf("expected ErrUnknownMessageType, got %v", err)
	}
	if _, err := RegistryFor(Kind("com.example.unknown")); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestRegistryIsShared(t *testing.T) {
	var wg sync.WaitGroup
	regs := make([]*Registry, 8)
	for i := range regs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			regs[i], _ = RegistryFor(KindKeynote)
		}()
	}
	wg.Wait()
	for _, r := range regs {
		if r == nil || r != regs[0] {
			t.Fatal("expected one shared registry")
		}
	}
	if regs[0].Kind() != KindKeynote {
		t.Fatalf("kind %s", regs[0].Kind())
	}
	types := regs[0].MessageTypes()
	if !slices.IsSorted(types) || !slices.Contains(types, 1) || !slices.Contains(types, 11006) {
		t.Fatalf("unexpected message types %v", types)
	}
}

func TestKindHelpers(t *testing.T) {
	for p, want := range map[string]Kind{"Deck.KEY": KindKeynote, "/tmp/Report.pages": KindPages, "Budget.numbers": KindNumbers} {
		if k, ok := KindForPath(p); !ok || k != want {
			t.Fatalf("%s: got %s, %v", p, k, ok)
		}
	}
	if _, ok := KindForPath("notes.txt"); ok {
		t.Fatal("expected no kind")
	}
	if k, err := ParseKind("numbers"); err != nil || k != KindNumbers {
		t.Fatalf("ParseKind: %s, %v", k, err)
	}
	if k, err := ParseKind(string(KindKeynote)); err != nil || k != KindKeynote {
		t.Fatalf("ParseKind: %s, %v", k, err)
	}
	if _, err := ParseKind("word"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}
