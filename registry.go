package iwa

import (
	"fmt"
	"slices"
	"sync"

	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Shape describes how the payload of one message type is laid out.
type Shape struct {
	MessageType uint32
	Descriptor  protoreflect.MessageDescriptor
}

func (s *Shape) TypeName() string {
	return string(s.Descriptor.FullName())
}

// Registry resolves message types of one package kind. It is immutable once
// built and safe for concurrent use.
type Registry struct {
	kind   Kind
	shapes map[uint32]*Shape
}

func (r *Registry) Kind() Kind { return r.kind }

// ShapeFor returns the shape registered for messageType.
func (r *Registry) ShapeFor(messageType uint32) (*Shape, error) {
	s, ok := r.shapes[messageType]
	if !ok {
		return nil, fmt.Errorf("%w: %d in %s", ErrUnknownMessageType, messageType, r.kind)
	}
	return s, nil
}

// MessageTypes lists the known message types in ascending order.
func (r *Registry) MessageTypes() []uint32 {
	out := make([]uint32, 0, len(r.shapes))
	for t := range r.shapes {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// registries holds one lazily built registry per kind. The map itself is
// never written after package initialization.
var registries = map[Kind]func() (*Registry, error){
	KindKeynote: sync.OnceValues(func() (*Registry, error) { return buildRegistry(KindKeynote, keynoteFile, keynoteTypes) }),
	KindPages:   sync.OnceValues(func() (*Registry, error) { return buildRegistry(KindPages, pagesFile, pagesTypes) }),
	KindNumbers: sync.OnceValues(func() (*Registry, error) { return buildRegistry(KindNumbers, numbersFile, numbersTypes) }),
}

// RegistryFor returns the process-wide registry for kind.
func RegistryFor(kind Kind) (*Registry, error) {
	load, ok := registries[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return load()
}

type typeEntry struct {
	messageType uint32
	name        protoreflect.FullName
}

func buildRegistry(kind Kind, family func() *descriptorpb.FileDescriptorProto, familyTypes []typeEntry) (*Registry, error) {
	files := new(protoregistry.Files)
	fdps := append(commonFiles(), family())
	for _, fdp := range fdps {
		fd, err := protodesc.NewFile(fdp, files)
		if err != nil {
			return nil, fmt.Errorf("iwa: schema %s: %w", fdp.GetName(), err)
		}
		if err := files.RegisterFile(fd); err != nil {
			return nil, fmt.Errorf("iwa: schema %s: %w", fdp.GetName(), err)
		}
	}

	r := &Registry{kind: kind, shapes: make(map[uint32]*Shape)}
	for _, table := range [][]typeEntry{commonTypes, familyTypes} {
		for _, e := range table {
			d, err := files.FindDescriptorByName(e.name)
			if err != nil {
				return nil, fmt.Errorf("iwa: schema type %d: %w", e.messageType, err)
			}
			md, ok := d.(protoreflect.MessageDescriptor)
			if !ok {
				return nil, fmt.Errorf("iwa: schema type %d: %s is not a message", e.messageType, e.name)
			}
			r.shapes[e.messageType] = &Shape{MessageType: e.messageType, Descriptor: md}
		}
	}
	return r, nil
}
