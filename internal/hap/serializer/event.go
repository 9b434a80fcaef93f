package serializer

import (
	"bytes"
	"context"
	"fmt"

	"github.com/hapcore/hapd/internal/hap/characteristic"
)

// EventBody builds the JSON body of one coalesced EVENT/1.0 frame
// (spec.md §5): the current value of every (aid, iid) pair in locs,
// read in event-notification context so the control-point and
// Programmable-Switch-Event read-time suppressions do not apply.
//
// Unlike Context, this is a single-pass, non-resumable build: event
// batches are bounded by session.MaxEventNotifications and small enough
// that chunked resumability (C7's concern for the full accessory tree)
// is unnecessary here.
func EventBody(db *characteristic.Database, session characteristic.SessionContext, locs []struct{ AID, IID uint64 }) ([]byte, error) {
	var out bytes.Buffer
	out.WriteString(`{"characteristics":[`)

	for i, loc := range locs {
		if i > 0 {
			out.WriteString(",")
		}
		ch := db.Find(characteristic.Locator{AID: loc.AID, IID: loc.IID})
		if ch == nil {
			continue
		}
		if err := writeEventCharacteristic(&out, loc.AID, ch, session); err != nil {
			return nil, err
		}
	}

	out.WriteString(`]}`)
	return out.Bytes(), nil
}

func writeEventCharacteristic(out *bytes.Buffer, aid uint64, ch *characteristic.Characteristic, session characteristic.SessionContext) error {
	value, status := ch.Read(context.Background(), session, characteristic.ReadContextEvent)

	fmt.Fprintf(out, `{"aid":%d,"iid":%d`, aid, ch.IID)
	if status != characteristic.StatusSuccess {
		fmt.Fprintf(out, `,"status":%d}`, status)
		return nil
	}

	out.WriteString(`,"value":`)
	if err := writeValue(out, ch.Format, value); err != nil {
		return err
	}
	out.WriteString(`}`)
	return nil
}
