package draws

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Topic says which writer callback produced a message.
type Topic int32

const (
	TopicUnknown        Topic = 0
	TopicLogger         Topic = 1
	TopicInitialization Topic = 2
	TopicSample         Topic = 3
	TopicDiagnostic     Topic = 4
)

func (t Topic) String() string {
	switch t {
	case TopicUnknown:
		return "unknown"
	case TopicLogger:
		return "logger"
	case TopicInitialization:
		return "initialization"
	case TopicSample:
		return "sample"
	case TopicDiagnostic:
		return "diagnostic"
	default:
		return fmt.Sprintf("topic_%d", int32(t))
	}
}

// Feature is one named column of a writer message. Exactly one of the list
// fields is populated on the wire; the others stay nil.
type Feature struct {
	Name       string
	DoubleList []float64
	IntList    []int64
	StringList []string
	BytesList  [][]byte
}

// WriterMessage is a single writer callback: a topic plus the values the
// callback carried. On the sample topic each message is one draw and each
// feature is one flattened parameter.
type WriterMessage struct {
	Topic    Topic
	Features []Feature
}

// Field numbers of the artifact schema.
const (
	msgFieldTopic   = 1
	msgFieldFeature = 2

	featureFieldName       = 1
	featureFieldDoubleList = 2
	featureFieldIntList    = 3
	featureFieldStringList = 4
	featureFieldBytesList  = 5

	listFieldValue = 1
)

// Marshal encodes a single writer message without any stream framing.
func Marshal(msg *WriterMessage) []byte {
	var buf []byte
	if msg.Topic != TopicUnknown {
		buf = protowire.AppendTag(buf, msgFieldTopic, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(msg.Topic))
	}
	for i := range msg.Features {
		body := marshalFeature(&msg.Features[i])
		buf = protowire.AppendTag(buf, msgFieldFeature, protowire.BytesType)
		buf = protowire.AppendBytes(buf, body)
	}
	return buf
}

func marshalFeature(f *Feature) []byte {
	var buf []byte
	if f.Name != "" {
		buf = protowire.AppendTag(buf, featureFieldName, protowire.BytesType)
		buf = protowire.AppendString(buf, f.Name)
	}
	if f.DoubleList != nil {
		var packed []byte
		for _, v := range f.DoubleList {
			packed = protowire.AppendFixed64(packed, math.Float64bits(v))
		}
		body := protowire.AppendTag(nil, listFieldValue, protowire.BytesType)
		body = protowire.AppendBytes(body, packed)
		buf = protowire.AppendTag(buf, featureFieldDoubleList, protowire.BytesType)
		buf = protowire.AppendBytes(buf, body)
	}
	if f.IntList != nil {
		var packed []byte
		for _, v := range f.IntList {
			packed = protowire.AppendVarint(packed, uint64(v))
		}
		body := protowire.AppendTag(nil, listFieldValue, protowire.BytesType)
		body = protowire.AppendBytes(body, packed)
		buf = protowire.AppendTag(buf, featureFieldIntList, protowire.BytesType)
		buf = protowire.AppendBytes(buf, body)
	}
	if f.StringList != nil {
		var body []byte
		for _, v := range f.StringList {
			body = protowire.AppendTag(body, listFieldValue, protowire.BytesType)
			body = protowire.AppendString(body, v)
		}
		buf = protowire.AppendTag(buf, featureFieldStringList, protowire.BytesType)
		buf = protowire.AppendBytes(buf, body)
	}
	if f.BytesList != nil {
		var body []byte
		for _, v := range f.BytesList {
			body = protowire.AppendTag(body, listFieldValue, protowire.BytesType)
			body = protowire.AppendBytes(body, v)
		}
		buf = protowire.AppendTag(buf, featureFieldBytesList, protowire.BytesType)
		buf = protowire.AppendBytes(buf, body)
	}
	return buf
}

// Unmarshal decodes a single writer message. Unknown fields are skipped so
// newer servers with extended schemas still parse.
func Unmarshal(b []byte) (*WriterMessage, error) {
	msg := &WriterMessage{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("failed to decode message tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == msgFieldTopic && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("failed to decode topic: %w", protowire.ParseError(n))
			}
			msg.Topic = Topic(v)
			b = b[n:]
		case num == msgFieldFeature && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("failed to decode feature: %w", protowire.ParseError(n))
			}
			f, err := unmarshalFeature(v)
			if err != nil {
				return nil, err
			}
			msg.Features = append(msg.Features, *f)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("failed to skip field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return msg, nil
}

func unmarshalFeature(b []byte) (*Feature, error) {
	f := &Feature{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("failed to decode feature tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		if typ != protowire.BytesType {
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("failed to skip feature field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, fmt.Errorf("failed to decode feature field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]

		var err error
		switch num {
		case featureFieldName:
			f.Name = string(v)
		case featureFieldDoubleList:
			f.DoubleList, err = unmarshalDoubleList(v)
		case featureFieldIntList:
			f.IntList, err = unmarshalIntList(v)
		case featureFieldStringList:
			f.StringList, err = appendStringValue(f.StringList, v)
		case featureFieldBytesList:
			f.BytesList, err = appendBytesValue(f.BytesList, v)
		}
		if err != nil {
			return nil, err
		}
	}
	return f, nil
}

// unmarshalDoubleList accepts both packed and unpacked encodings of a
// repeated double field.
func unmarshalDoubleList(b []byte) ([]float64, error) {
	var out []float64
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("failed to decode double list tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == listFieldValue && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("failed to decode packed doubles: %w", protowire.ParseError(n))
			}
			b = b[n:]
			for len(packed) > 0 {
				v, m := protowire.ConsumeFixed64(packed)
				if m < 0 {
					return nil, fmt.Errorf("failed to decode packed double: %w", protowire.ParseError(m))
				}
				out = append(out, math.Float64frombits(v))
				packed = packed[m:]
			}
		case num == listFieldValue && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return nil, fmt.Errorf("failed to decode double: %w", protowire.ParseError(n))
			}
			out = append(out, math.Float64frombits(v))
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("failed to skip double list field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return out, nil
}

// unmarshalIntList accepts both packed and unpacked encodings of a repeated
// int64 field.
func unmarshalIntList(b []byte) ([]int64, error) {
	var out []int64
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("failed to decode int list tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == listFieldValue && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("failed to decode packed ints: %w", protowire.ParseError(n))
			}
			b = b[n:]
			for len(packed) > 0 {
				v, m := protowire.ConsumeVarint(packed)
				if m < 0 {
					return nil, fmt.Errorf("failed to decode packed int: %w", protowire.ParseError(m))
				}
				out = append(out, int64(v))
				packed = packed[m:]
			}
		case num == listFieldValue && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("failed to decode int: %w", protowire.ParseError(n))
			}
			out = append(out, int64(v))
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("failed to skip int list field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return out, nil
}

func appendStringValue(out []string, b []byte) ([]string, error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("failed to decode string list tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		if num == listFieldValue && typ == protowire.BytesType {
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, fmt.Errorf("failed to decode string: %w", protowire.ParseError(n))
			}
			out = append(out, v)
			b = b[n:]
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return nil, fmt.Errorf("failed to skip string list field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return out, nil
}

func appendBytesValue(out [][]byte, b []byte) ([][]byte, error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("failed to decode bytes list tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		if num == listFieldValue && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("failed to decode bytes: %w", protowire.ParseError(n))
			}
			out = append(out, append([]byte(nil), v...))
			b = b[n:]
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return nil, fmt.Errorf("failed to skip bytes list field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return out, nil
}
