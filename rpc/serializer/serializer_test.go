package serializer

import (
	"reflect"
	"testing"

	"github.com/ValentinKolb/aodb/lib/store"
	"github.com/ValentinKolb/aodb/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// Put request
		{
			MsgType: common.MsgTKVPut,
			Key:     "users/alice",
			Value:   []byte("test-value"),
		},

		// Get response with concurrent values
		{
			MsgType: common.MsgTKVGet,
			Values:  [][]byte{[]byte("a"), []byte("b")},
			Ok:      true,
		},

		// List request and response
		{
			MsgType:   common.MsgTKVList,
			Key:       "users",
			Recursive: true,
		},
		{
			MsgType: common.MsgTKVList,
			Entries: []common.Entry{
				{Key: "users/alice", Values: [][]byte{[]byte("admin")}},
				{Key: "users/bob", Deleted: true},
			},
		},

		// Version based read
		{
			MsgType: common.MsgTKVGetAt,
			Key:     "users/alice",
			Version: []byte{1, 2, 3, 4},
		},

		// Replication
		{
			MsgType: common.MsgTREPBlocks,
			Key:     "00ff",
			From:    1,
			To:      257,
		},
		{
			MsgType: common.MsgTREPFeeds,
			Entries: []common.Entry{{Key: "00ff", Length: 42}},
		},

		// Error response
		{
			MsgType: common.MsgTError,
			Err:     "test error message",
			Code:    store.RetCInvalidOperation,
		},

		// Message with many fields filled
		{
			MsgType: common.MsgTLCKAcquire,
			Key:     "test-lock-key",
			Timeout: 300,
			Value:   []byte("test-lock-value"),
			Ok:      true,
			Meta:    []byte("test-meta-data"),
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				// Compare
				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			// Test each message type (don't test for MsgTUnknown since this should raise an error)
			for msgType := common.MsgTSuccess; msgType <= common.MsgTLCKRelease; msgType++ {
				msg := common.Message{MsgType: msgType}

				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType.String(), err)
					continue
				}

				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType.String(), err)
					continue
				}

				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s",
						msgType.String(), result.MsgType.String())
				}
			}
		})
	}
}

// TestErrorRoundTrip tests that store errors survive every serializer
func TestErrorRoundTrip(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()
			resp := common.NewGetAtResponse(nil, false, store.NewError(store.RetCInvalidOperation, "bad version"))

			data, err := serializer.Serialize(*resp)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}
			var result common.Message
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			storeErr, ok := result.Error().(*store.Error)
			if !ok {
				t.Fatalf("Expected *store.Error, got %T", result.Error())
			}
			if storeErr.Code != store.RetCInvalidOperation || storeErr.Msg != "bad version" {
				t.Errorf("Unexpected error after round trip: %v", storeErr)
			}
		})
	}
}

// TestBinarySerializerSpecific tests specific edge cases for the binary serializer
func TestBinarySerializerSpecific(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := map[string]common.Message{
		"Empty message": {},
		"Empty value slice but not nil": {
			MsgType: common.MsgTKVPut,
			Key:     "test",
			Value:   []byte{},
		},
		"Empty version slice but not nil": {
			MsgType: common.MsgTKVGetAt,
			Key:     "test",
			Version: []byte{},
		},
		"Empty values list but not nil": {
			MsgType: common.MsgTREPBlocks,
			Values:  [][]byte{},
		},
		"Empty meta slice but not nil": {
			MsgType: common.MsgTKVStats,
			Meta:    []byte{},
		},
		"Ok without other fields": {
			MsgType: common.MsgTKVHas,
			Ok:      true,
		},
	}

	for name, msg := range testCases {
		t.Run(name, func(t *testing.T) {
			data, err := serializer.Serialize(msg)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var result common.Message
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			// the binary format keeps the difference between nil and empty
			if !reflect.DeepEqual(msg, result) {
				t.Errorf("Mismatch after round trip:\nOriginal: %#v\nResult: %#v", msg, result)
			}
		})
	}
}

// TestBinaryDeserializeResets tests that a reused message does not keep old fields
func TestBinaryDeserializeResets(t *testing.T) {
	serializer := NewBinarySerializer()

	data, err := serializer.Serialize(common.Message{MsgType: common.MsgTKVDelete, Key: "new"})
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}

	msg := common.Message{Value: []byte("old"), Ok: true, Err: "old"}
	if err := serializer.Deserialize(data, &msg); err != nil {
		t.Fatalf("Failed to deserialize: %v", err)
	}
	if msg.Value != nil || msg.Ok || msg.Err != "" || msg.Key != "new" {
		t.Errorf("Old fields survived deserialization: %+v", msg)
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := map[string]struct {
		data        []byte
		expectError bool
	}{
		"Empty data": {
			data:        []byte{},
			expectError: true,
		},
		"Too short header": {
			data:        []byte{1, 0}, // Message type and half of the flags
			expectError: true,
		},
		"Valid header only": {
			data:        []byte{1, 0, 0}, // Message type 1, no flags
			expectError: false,
		},
		"Invalid length for key": {
			data:        []byte{1, 0, 1, 0, 0, 0, 5, 'a', 'b', 'c'}, // Claims key length 5 but only 3 bytes provided
			expectError: true,
		},
		"Invalid length for value": {
			data:        []byte{1, 0, 2, 0, 0, 0, 10}, // Claims value length 10 but no bytes provided
			expectError: true,
		},
		"Huge values count": {
			data:        []byte{1, 0, 4, 0xff, 0xff, 0xff, 0xff}, // Claims 4G values
			expectError: true,
		},
		"Huge entries count": {
			data:        []byte{1, 1, 0, 0x7f, 0xff, 0xff, 0xff},
			expectError: true,
		},
		"Missing uint64": {
			data:        []byte{1, 0, 16, 0, 0, 0}, // From flag with 3 bytes
			expectError: true,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}
