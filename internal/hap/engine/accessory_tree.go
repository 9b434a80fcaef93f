package engine

import (
	"encoding/json"

	"github.com/hapcore/hapd/internal/hap/characteristic"
)

// accessoryTreeView is the read-only admin-facing shape of the accessory
// database, distinct from the protocol-level GET /accessories response:
// it carries display metadata and skips characteristic values entirely,
// since the control plane's audience is an operator, not a paired
// controller (internal/controlplane's package doc).
type accessoryTreeView struct {
	AID                uint64               `json:"aid"`
	Category           int                  `json:"category"`
	Name               string               `json:"name"`
	Model              string               `json:"model"`
	Firmware           string               `json:"firmware"`
	IsBridge           bool                 `json:"is_bridge,omitempty"`
	BridgedAccessories []uint64             `json:"bridged_accessories,omitempty"`
	Services           []accessoryTreeServ  `json:"services"`
}

type accessoryTreeServ struct {
	IID             uint64   `json:"iid"`
	TypeUUID        string   `json:"type"`
	Characteristics []uint64 `json:"characteristic_iids"`
}

func accessoryTreeJSON(db *characteristic.Database) ([]byte, error) {
	views := make([]accessoryTreeView, 0, len(db.Accessories))
	for _, a := range db.Accessories {
		v := accessoryTreeView{
			AID:                a.AID,
			Category:           a.Category,
			Name:               a.Name,
			Model:              a.Model,
			Firmware:           a.Firmware,
			IsBridge:           a.IsBridge,
			BridgedAccessories: a.BridgedAccessories,
		}
		for _, s := range a.Services {
			iids := make([]uint64, len(s.Characteristics))
			for i, ch := range s.Characteristics {
				iids[i] = ch.IID
			}
			v.Services = append(v.Services, accessoryTreeServ{
				IID:             s.IID,
				TypeUUID:        s.TypeUUID,
				Characteristics: iids,
			})
		}
		views = append(views, v)
	}
	return json.Marshal(views)
}
