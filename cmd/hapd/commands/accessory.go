package commands

import (
	"context"
	"fmt"

	"github.com/hapcore/hapd/internal/hap/characteristic"
	"github.com/hapcore/hapd/internal/logger"
	"github.com/hapcore/hapd/pkg/config"
	"github.com/hapcore/hapd/pkg/pairing"
)

// Apple-defined type UUIDs for the Accessory Information service and its
// mandatory characteristics (HAP spec, not themselves a moving part of
// this module — only the aid=1 bootstrap accessory below exercises
// them).
const (
	serviceAccessoryInformation = "0000003E-0000-1000-8000-0026BB765291"

	charIdentify         = "00000014-0000-1000-8000-0026BB765291"
	charManufacturer     = "00000020-0000-1000-8000-0026BB765291"
	charModel            = "00000021-0000-1000-8000-0026BB765291"
	charName             = "00000023-0000-1000-8000-0026BB765291"
	charSerialNumber     = "00000030-0000-1000-8000-0026BB765291"
	charFirmwareRevision = "00000052-0000-1000-8000-0026BB765291"
)

// defaultDatabase builds the mandatory aid=1 Accessory Information
// service from the accessory config, giving start something real to
// serve before an application wires in its own accessory tree (spec.md
// §3 treats the accessory tree itself as an external collaborator; this
// is a minimal, usable default rather than the module's concern).
func defaultDatabase(cfg config.AccessoryConfig) *characteristic.Database {
	info := &characteristic.Service{
		IID:      1,
		TypeUUID: serviceAccessoryInformation,
		Characteristics: []*characteristic.Characteristic{
			staticString(2, charManufacturer, "hapcore"),
			staticString(3, charModel, cfg.Model),
			staticString(4, charName, cfg.Name),
			staticString(5, charSerialNumber, "default-serial"),
			staticString(6, charFirmwareRevision, cfg.Firmware),
			identifyCharacteristic(7),
		},
	}

	return &characteristic.Database{
		Accessories: []*characteristic.Accessory{
			{
				AID:      1,
				Category: cfg.Category,
				Name:     cfg.Name,
				Model:    cfg.Model,
				Firmware: cfg.Firmware,
				Services: []*characteristic.Service{info},
			},
		},
	}
}

// staticString builds a read-only String characteristic that always
// returns value.
func staticString(iid uint64, typeUUID, value string) *characteristic.Characteristic {
	return &characteristic.Characteristic{
		IID:      iid,
		TypeUUID: typeUUID,
		Format:   characteristic.FormatString,
		Properties: characteristic.Properties{
			Readable: true,
		},
		Constraints: characteristic.Constraints{MaxLength: 64},
		OnRead: func(ctx context.Context, session characteristic.SessionContext) (any, error) {
			return value, nil
		},
	}
}

// identifyCharacteristic builds the write-only Identify characteristic
// POST /identify writes to (spec.md §8 scenario S1): its OnWrite simply
// logs the request, since the accessory's actual identify behavior
// (blink a light, chirp) is application-specific.
func identifyCharacteristic(iid uint64) *characteristic.Characteristic {
	return &characteristic.Characteristic{
		IID:      iid,
		TypeUUID: charIdentify,
		Format:   characteristic.FormatBool,
		Properties: characteristic.Properties{
			Writable: true,
		},
		OnWrite: func(ctx context.Context, session characteristic.SessionContext, value any) error {
			logger.Info("identify requested")
			return nil
		},
	}
}

// anonymousSession satisfies characteristic.SessionContext for the
// identify write POST /identify triggers before any pairing exists —
// there is no real session to attribute it to.
type anonymousSession struct{}

func (anonymousSession) IsAdmin() bool { return false }

// identifyHandler implements dispatch.IdentifyHandler by writing true to
// the aid=1 Identify characteristic.
type identifyHandler struct {
	db *characteristic.Database
}

func (h identifyHandler) HandleIdentify(ctx context.Context) error {
	ch := h.db.Find(characteristic.Locator{AID: 1, IID: 7})
	if ch == nil {
		return fmt.Errorf("commands: no identify characteristic registered")
	}
	result := ch.Write(ctx, anonymousSession{}, characteristic.WriteRequest{Value: true})
	if result.Status != characteristic.StatusSuccess {
		return fmt.Errorf("commands: identify write failed with status %d", result.Status)
	}
	return nil
}

// pairingState implements dispatch.PairingState over a pairing.Store, so
// POST /identify can refuse once the accessory has paired with a
// controller.
type pairingState struct {
	store pairing.Store
}

func (p pairingState) IsPaired(ctx context.Context) (bool, error) {
	return pairing.IsPaired(ctx, p.store)
}
