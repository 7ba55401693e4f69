package index

import "github.com/fxamacker/cbor/v2"

// cborMode uses Core Deterministic Encoding (RFC 8949 §4.2) so identical
// records always produce identical bytes.
var cborMode cbor.EncMode

func init() {
	var err error
	cborMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("index: CBOR encoder initialization failed: " + err.Error())
	}
}

func encodeCBOR(records []wireRecord) ([]byte, error) {
	return cborMode.Marshal(records)
}
