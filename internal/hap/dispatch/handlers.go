package dispatch

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/hapcore/hapd/internal/hap/base64hap"
	"github.com/hapcore/hapd/internal/hap/characteristic"
	"github.com/hapcore/hapd/internal/hap/session"
)

func tlvOK(body []byte) []byte {
	return []byte("HTTP/1.1 200 OK\r\nContent-Type: application/pairing+tlv8\r\nContent-Length: " +
		strconv.Itoa(len(body)) + "\r\n\r\n" + string(body))
}

func (d *Dispatcher) handleIdentify(ctx context.Context) []byte {
	if d.Identify == nil {
		return RespServerError
	}
	if d.Pairing != nil {
		paired, err := d.Pairing.IsPaired(ctx)
		if err != nil {
			return RespServerError
		}
		if paired {
			return RespInsufficientPrivileges()
		}
	}
	if err := d.Identify.HandleIdentify(ctx); err != nil {
		return RespServerError
	}
	return RespNoContent
}

func (d *Dispatcher) handlePairSetup(ctx context.Context, sess *session.Session, body []byte) []byte {
	if d.PairSetup == nil {
		return RespServerError
	}
	resp, err := d.PairSetup.HandlePairSetup(ctx, sess, body)
	if err != nil {
		return RespServerError
	}
	return tlvOK(resp)
}

func (d *Dispatcher) handlePairVerify(ctx context.Context, sess *session.Session, body []byte) []byte {
	if d.PairVerify == nil {
		return RespServerError
	}
	resp, err := d.PairVerify.HandlePairVerify(ctx, sess, body)
	if err != nil {
		return RespServerError
	}
	return tlvOK(resp)
}

func (d *Dispatcher) handlePairings(ctx context.Context, sess *session.Session, body []byte) []byte {
	if d.Pairings == nil {
		return RespServerError
	}
	resp, err := d.Pairings.HandlePairings(ctx, sess, body)
	if err != nil {
		return RespServerError
	}
	return tlvOK(resp)
}

func (d *Dispatcher) handleSecureMessage(ctx context.Context, sess *session.Session, body []byte) []byte {
	if d.SecureMessage == nil {
		return RespServerError
	}
	resp, err := d.SecureMessage.HandleSecureMessage(ctx, sess, body)
	if err != nil {
		return RespServerError
	}
	return tlvOK(resp)
}

func (d *Dispatcher) handleResource(ctx context.Context, sess *session.Session, body []byte) []byte {
	if d.Resource == nil {
		return RespNotFound
	}
	resp, contentType, err := d.Resource.HandleResource(ctx, sess, body)
	if err != nil {
		return RespServerError
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return []byte("HTTP/1.1 200 OK\r\nContent-Type: " + contentType + "\r\nContent-Length: " +
		strconv.Itoa(len(resp)) + "\r\n\r\n" + string(resp))
}

// parseCharacteristicIDs parses the "id" query parameter of GET
// /characteristics: a comma-separated list of "aid.iid" pairs
// (spec.md §6, SPEC_FULL §4's multi-id query).
func parseCharacteristicIDs(raw string) ([]characteristic.Locator, bool) {
	if raw == "" {
		return nil, false
	}
	parts := strings.Split(raw, ",")
	locs := make([]characteristic.Locator, 0, len(parts))
	for _, p := range parts {
		dot := strings.IndexByte(p, '.')
		if dot < 0 {
			return nil, false
		}
		aid, err := strconv.ParseUint(p[:dot], 10, 64)
		if err != nil {
			return nil, false
		}
		iid, err := strconv.ParseUint(p[dot+1:], 10, 64)
		if err != nil {
			return nil, false
		}
		locs = append(locs, characteristic.Locator{AID: aid, IID: iid})
	}
	return locs, true
}

func (d *Dispatcher) handleCharacteristicsGet(ctx context.Context, sess *session.Session, rawQuery string) []byte {
	values := unescapeQuery(rawQuery)
	locs, ok := parseCharacteristicIDs(values.Get("id"))
	if !ok {
		return RespMalformed
	}

	wantMeta := values.Get("meta") == "1"
	wantPerms := values.Get("perms") == "1"
	wantType := values.Get("type") == "1"

	results := make([]characteristicResult, 0, len(locs))
	anyFailed := false
	for _, loc := range locs {
		ch := d.DB.Find(loc)
		if ch == nil {
			status := characteristic.StatusInvalidData
			anyFailed = true
			results = append(results, characteristicResult{AID: loc.AID, IID: loc.IID, Status: &status})
			continue
		}
		value, status := ch.Read(ctx, sess, characteristic.ReadContextNormal)
		if status != characteristic.StatusSuccess {
			anyFailed = true
		}
		res := characteristicResult{AID: loc.AID, IID: loc.IID, Status: &status, Value: value}
		if wantType {
			res.Type = ch.TypeUUID
		}
		if wantPerms {
			res.Perms = permsOf(ch.Properties)
		}
		if wantMeta {
			res.Format = formatName(ch.Format)
		}
		results = append(results, res)
	}

	if !anyFailed {
		for i := range results {
			results[i].Status = nil
		}
	}

	body, err := json.Marshal(multiStatusBody{Characteristics: results})
	if err != nil {
		return RespServerError
	}
	if anyFailed {
		return jsonMultiStatus(body)
	}
	return jsonOK(body)
}

func permsOf(p characteristic.Properties) []string {
	var perms []string
	if p.Readable {
		perms = append(perms, "pr")
	}
	if p.Writable {
		perms = append(perms, "pw")
	}
	if p.SupportsEventNotification {
		perms = append(perms, "ev")
	}
	if p.RequiresAdminRead || p.RequiresAdminWrite {
		perms = append(perms, "aa")
	}
	if p.SupportsWriteResponse {
		perms = append(perms, "wr")
	}
	if p.IsControlPoint {
		perms = append(perms, "wr")
	}
	return perms
}

func formatName(f characteristic.Format) string {
	switch f {
	case characteristic.FormatBool:
		return "bool"
	case characteristic.FormatUInt8:
		return "uint8"
	case characteristic.FormatUInt16:
		return "uint16"
	case characteristic.FormatUInt32:
		return "uint32"
	case characteristic.FormatUInt64:
		return "uint64"
	case characteristic.FormatInt:
		return "int"
	case characteristic.FormatFloat:
		return "float"
	case characteristic.FormatString:
		return "string"
	case characteristic.FormatTLV8:
		return "tlv8"
	default:
		return "data"
	}
}

func decodeWriteValue(format characteristic.Format, raw json.RawMessage) (any, error) {
	switch format {
	case characteristic.FormatData, characteristic.FormatTLV8:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return base64hap.DecodeString(s)
	case characteristic.FormatString:
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	default:
		var f float64
		err := json.Unmarshal(raw, &f)
		return f, err
	}
}

// handleCharacteristicsPut implements PUT /characteristics, including
// the prepare/pid timed-write commit protocol (spec.md §4.8): when the
// body carries "pid", the whole batch's writes execute only if
// (*session.Session).ConsumeTimedWrite succeeds; otherwise every write
// context in the request is forced to StatusInvalidData without being
// applied, per the one-shot replay-protection property.
func (d *Dispatcher) handleCharacteristicsPut(ctx context.Context, sess *session.Session, body []byte) []byte {
	var reqBody writeRequestBody
	if err := json.Unmarshal(body, &reqBody); err != nil {
		return RespMalformed
	}

	timedWriteOK := true
	isTimedWrite := false
	if reqBody.PID != nil {
		isTimedWrite = true
		timedWriteOK = sess.ConsumeTimedWrite(*reqBody.PID)
	}

	results := make([]characteristicResult, 0, len(reqBody.Characteristics))
	anyFailed := false

	for _, entry := range reqBody.Characteristics {
		loc := characteristic.Locator{AID: entry.AID, IID: entry.IID}
		ch := d.DB.Find(loc)
		if ch == nil {
			status := characteristic.StatusInvalidData
			anyFailed = true
			results = append(results, characteristicResult{AID: entry.AID, IID: entry.IID, Status: &status})
			continue
		}

		if isTimedWrite && !timedWriteOK {
			status := characteristic.StatusInvalidData
			anyFailed = true
			results = append(results, characteristicResult{AID: entry.AID, IID: entry.IID, Status: &status})
			continue
		}

		res := characteristicResult{AID: entry.AID, IID: entry.IID}

		if entry.Ev != nil {
			if *entry.Ev {
				var err error
				if ch.OnSubscribe != nil {
					err = ch.OnSubscribe(ctx, sess)
				}
				if err == nil {
					_ = sess.Subscribe(entry.AID, entry.IID)
				}
			} else {
				if ch.OnUnsubscribe != nil {
					_ = ch.OnUnsubscribe(ctx, sess)
				}
				sess.Unsubscribe(entry.AID, entry.IID)
			}
		}

		if len(entry.Value) > 0 {
			value, err := decodeWriteValue(ch.Format, entry.Value)
			if err != nil {
				status := characteristic.StatusInvalidData
				anyFailed = true
				res.Status = &status
				results = append(results, res)
				continue
			}
			wantsResponse := entry.Response != nil && *entry.Response
			result := ch.Write(ctx, sess, characteristic.WriteRequest{
				Value:             value,
				RequestsResponse:  wantsResponse,
				IsTimedWrite:      isTimedWrite,
			})
			if result.Status != characteristic.StatusSuccess {
				anyFailed = true
			} else if d.Events != nil {
				immediate := ch.Properties.IsControlPoint || ch.ProgrammableSwitchEvent
				d.Events.Raise(entry.AID, entry.IID, immediate, sess.ID)
			}
			res.Status = &result.Status
			if wantsResponse {
				res.Value = result.Value
			}
		}

		results = append(results, res)
	}

	if !anyFailed {
		return RespNoContent
	}

	body, err := json.Marshal(multiStatusBody{Characteristics: results})
	if err != nil {
		return RespServerError
	}
	return jsonMultiStatus(body)
}

// handlePrepare implements PUT /prepare (spec.md §4.8): arms a timed
// write on the session for ttl milliseconds, keyed by pid.
func (d *Dispatcher) handlePrepare(sess *session.Session, body []byte) []byte {
	var req prepareRequestBody
	if err := json.Unmarshal(body, &req); err != nil {
		return RespMalformed
	}
	sess.ArmTimedWrite(time.Duration(req.TTL)*time.Millisecond, req.PID)

	respBody, err := json.Marshal(statusOnlyBody{Status: characteristic.StatusSuccess})
	if err != nil {
		return RespServerError
	}
	return jsonOK(respBody)
}
