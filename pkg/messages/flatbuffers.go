package messages

import (
	"fmt"

	"github.com/cbodonnell/roulette/pkg/chips"
	"github.com/cbodonnell/roulette/pkg/kinematic"
	"github.com/cbodonnell/roulette/pkg/state"
	flatbuffers "github.com/google/flatbuffers/go"
)

// messageIdentifier marks a flatbuffer message envelope.
var messageIdentifier = []byte("RLMS")

// Message table slots.
const (
	messageSlotType = iota
	messageSlotTimestamp
	messageSlotPayload
	messageSlotCount
)

// Table state slots. Bets and the last result are not part of the frame,
// clients get those from the bet and payout events.
const (
	tableStateSlotTimestamp = iota
	tableStateSlotPhase
	tableStateSlotRoundID
	tableStateSlotBalance
	tableStateSlotTotalWager
	tableStateSlotSelectedChip
	tableStateSlotLocked
	tableStateSlotWheelAngle
	tableStateSlotBallX
	tableStateSlotBallY
	tableStateSlotBallZ
	tableStateSlotResultVisible
	tableStateSlotCount
)

// SerializeMessageFlatbuffer encodes the envelope. State messages carry the
// table state as a nested flatbuffer instead of JSON.
func SerializeMessageFlatbuffer(m *Message) ([]byte, error) {
	payload := []byte(m.Payload)
	if m.Type == MessageTypeServerState {
		tableState := m.state
		if tableState == nil {
			tableState = &state.TableState{}
			if err := m.DecodePayload(tableState); err != nil {
				return nil, err
			}
		}
		payload = SerializeTableState(tableState)
	}

	builder := flatbuffers.NewBuilder(len(payload) + 64)
	messageType := builder.CreateString(m.Type)
	payloadVector := builder.CreateByteVector(payload)

	builder.StartObject(messageSlotCount)
	builder.PrependUOffsetTSlot(messageSlotType, messageType, 0)
	builder.PrependInt64Slot(messageSlotTimestamp, m.Timestamp, 0)
	builder.PrependUOffsetTSlot(messageSlotPayload, payloadVector, 0)
	message := builder.EndObject()
	builder.FinishWithFileIdentifier(message, messageIdentifier)

	return builder.FinishedBytes(), nil
}

// DeserializeMessageFlatbuffer decodes an envelope. A flatbuffer table state
// payload is converted back to JSON so that DecodePayload works for every type.
func DeserializeMessageFlatbuffer(b []byte) (message *Message, err error) {
	if !isFlatbufferMessage(b) {
		return nil, fmt.Errorf("missing flatbuffer message identifier")
	}
	defer func() {
		if r := recover(); r != nil {
			message, err = nil, fmt.Errorf("malformed flatbuffer message: %v", r)
		}
	}()

	t := rootTable(b)
	message = &Message{
		Type:      t.fieldString(messageSlotType),
		Timestamp: t.fieldInt64(messageSlotTimestamp),
	}
	payload := t.fieldBytes(messageSlotPayload)
	if message.Type != MessageTypeServerState {
		if len(payload) > 0 {
			message.Payload = append([]byte(nil), payload...)
		}
		return message, nil
	}

	tableState, err := DeserializeTableState(payload)
	if err != nil {
		return nil, err
	}
	timestamp := message.Timestamp
	if message, err = NewStateMessage(tableState); err != nil {
		return nil, err
	}
	message.Timestamp = timestamp
	return message, nil
}

// SerializeTableState encodes the fields of the table state that change every tick.
func SerializeTableState(s *state.TableState) []byte {
	builder := flatbuffers.NewBuilder(128)
	phase := builder.CreateString(s.Phase)
	roundID := builder.CreateString(s.RoundID)

	builder.StartObject(tableStateSlotCount)
	builder.PrependInt64Slot(tableStateSlotTimestamp, s.Timestamp, 0)
	builder.PrependUOffsetTSlot(tableStateSlotPhase, phase, 0)
	builder.PrependUOffsetTSlot(tableStateSlotRoundID, roundID, 0)
	builder.PrependInt64Slot(tableStateSlotBalance, int64(s.Balance), 0)
	builder.PrependInt64Slot(tableStateSlotTotalWager, int64(s.TotalWager), 0)
	builder.PrependInt32Slot(tableStateSlotSelectedChip, int32(s.SelectedChip), 0)
	builder.PrependBoolSlot(tableStateSlotLocked, s.Locked, false)
	builder.PrependFloat64Slot(tableStateSlotWheelAngle, s.WheelAngle, 0)
	builder.PrependFloat64Slot(tableStateSlotBallX, s.BallPosition.X, 0)
	builder.PrependFloat64Slot(tableStateSlotBallY, s.BallPosition.Y, 0)
	builder.PrependFloat64Slot(tableStateSlotBallZ, s.BallPosition.Z, 0)
	builder.PrependBoolSlot(tableStateSlotResultVisible, s.ResultVisible, false)
	tableState := builder.EndObject()
	builder.Finish(tableState)

	return builder.FinishedBytes()
}

func DeserializeTableState(b []byte) (tableState *state.TableState, err error) {
	if len(b) < flatbuffers.SizeUOffsetT {
		return nil, fmt.Errorf("table state frame is too short")
	}
	defer func() {
		if r := recover(); r != nil {
			tableState, err = nil, fmt.Errorf("malformed table state frame: %v", r)
		}
	}()

	t := rootTable(b)
	return &state.TableState{
		Timestamp:    t.fieldInt64(tableStateSlotTimestamp),
		Phase:        t.fieldString(tableStateSlotPhase),
		RoundID:      t.fieldString(tableStateSlotRoundID),
		Balance:      int(t.fieldInt64(tableStateSlotBalance)),
		TotalWager:   int(t.fieldInt64(tableStateSlotTotalWager)),
		SelectedChip: chips.Denomination(t.fieldInt32(tableStateSlotSelectedChip)),
		Locked:       t.fieldBool(tableStateSlotLocked),
		WheelAngle:   t.fieldFloat64(tableStateSlotWheelAngle),
		BallPosition: kinematic.Vector{
			X: t.fieldFloat64(tableStateSlotBallX),
			Y: t.fieldFloat64(tableStateSlotBallY),
			Z: t.fieldFloat64(tableStateSlotBallZ),
		},
		ResultVisible: t.fieldBool(tableStateSlotResultVisible),
	}, nil
}

func isFlatbufferMessage(b []byte) bool {
	n := flatbuffers.SizeUOffsetT
	return len(b) >= n+len(messageIdentifier) && string(b[n:n+len(messageIdentifier)]) == string(messageIdentifier)
}

// fbTable reads scalar and vector fields by slot number.
type fbTable struct {
	flatbuffers.Table
}

func rootTable(b []byte) fbTable {
	return fbTable{flatbuffers.Table{Bytes: b, Pos: flatbuffers.GetUOffsetT(b)}}
}

func (t fbTable) field(slot int) flatbuffers.UOffsetT {
	o := flatbuffers.UOffsetT(t.Offset(flatbuffers.VOffsetT(4 + 2*slot)))
	if o == 0 {
		return 0
	}
	return o + t.Pos
}

func (t fbTable) fieldInt64(slot int) int64 {
	if o := t.field(slot); o != 0 {
		return t.GetInt64(o)
	}
	return 0
}

func (t fbTable) fieldInt32(slot int) int32 {
	if o := t.field(slot); o != 0 {
		return t.GetInt32(o)
	}
	return 0
}

func (t fbTable) fieldFloat64(slot int) float64 {
	if o := t.field(slot); o != 0 {
		return t.GetFloat64(o)
	}
	return 0
}

func (t fbTable) fieldBool(slot int) bool {
	if o := t.field(slot); o != 0 {
		return t.GetBool(o)
	}
	return false
}

func (t fbTable) fieldString(slot int) string {
	if o := t.field(slot); o != 0 {
		return t.String(o)
	}
	return ""
}

func (t fbTable) fieldBytes(slot int) []byte {
	if o := t.field(slot); o != 0 {
		return t.ByteVector(o)
	}
	return nil
}
