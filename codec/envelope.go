package codec

import "google.golang.org/protobuf/encoding/protowire"

// protoEnvelope mirrors the wire shape of the original worker's
// EventPayload protobuf message:
//
//	message EventPayload {
//	  string provider = 1;
//	  string name     = 2;
//	  bytes  payload  = 3;
//	}
//
// No .proto source for this envelope ships in this module (control-plane
// message definitions are out of scope), so it is parsed directly off the
// wire with protowire rather than a generated package.
type protoEnvelope struct {
	Provider string
	Name     string
	Payload  []byte
}

// parseProtoEnvelope attempts to parse raw as a protoEnvelope. It returns
// ok=false on any malformed input or unexpected wire type, the same
// "anything unparseable falls through to JSON" behavior the original codec
// gets from a bare ParseFromString try/except.
func parseProtoEnvelope(raw []byte) (protoEnvelope, bool) {
	var env protoEnvelope
	var sawField bool

	b := raw
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protoEnvelope{}, false
		}
		b = b[n:]

		switch {
		case num == 1 && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			if n < 0 {
				return protoEnvelope{}, false
			}
			env.Provider = s
			b = b[n:]
			sawField = true
		case num == 2 && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			if n < 0 {
				return protoEnvelope{}, false
			}
			env.Name = s
			b = b[n:]
			sawField = true
		case num == 3 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protoEnvelope{}, false
			}
			env.Payload = append([]byte(nil), v...)
			b = b[n:]
			sawField = true
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protoEnvelope{}, false
			}
			b = b[n:]
		}
	}

	if !sawField {
		return protoEnvelope{}, false
	}
	return env, true
}
