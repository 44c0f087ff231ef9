package serializer

import (
	"encoding/json"

	"github.com/ValentinKolb/aodb/rpc/common"
)

// NewJSONSerializer creates a new serializer using json encoding.
// Byte slices are base64 encoded, empty slices are omitted.
func NewJSONSerializer() IRPCSerializer {
	return &jsonSerializerImpl{}
}

type jsonSerializerImpl struct {
}

func (j jsonSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	return json.Marshal(msg)
}

func (j jsonSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	*msg = common.Message{}
	return json.Unmarshal(b, msg)
}
