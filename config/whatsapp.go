package config

import (
	"context"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
)

// InitWhatsApp opens the WhatsApp session used by the sms channel's
// whatsapp transport. Session keys live in the same postgres database.
// On first start the pairing QR code is written to WHATSAPP_QR_PATH and
// the call blocks until an admin scans it.
func InitWhatsApp(ctx context.Context) (*whatsmeow.Client, error) {
	log := GetLogrusInstance()
	c := Conf()

	container, err := sqlstore.New("postgres", GetDatabaseURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open whatsapp session store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice()
	if err != nil {
		return nil, fmt.Errorf("failed to load whatsapp device: %w", err)
	}
	client := whatsmeow.NewClient(deviceStore, nil)

	if client.Store.ID != nil {
		if err := client.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect whatsapp: %w", err)
		}
		log.Info("WhatsMeow initialized")
		return client, nil
	}

	qrChan, err := client.GetQRChannel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open whatsapp pairing channel: %w", err)
	}
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect whatsapp: %w", err)
	}

	qrPath := c.GetString("WHATSAPP_QR_PATH")
	written := false
	for evt := range qrChan {
		switch evt.Event {
		case "code":
			if written {
				continue
			}
			if err := qrcode.WriteFile(evt.Code, qrcode.Medium, 256, qrPath); err != nil {
				return nil, fmt.Errorf("failed to generate QR code: %w", err)
			}
			written = true
			log.WithField("path", qrPath).Warn("no WhatsApp session found, scan the QR code to pair")
		case "success":
			log.Info("WhatsApp paired")
			return client, nil
		default:
			log.WithField("event", evt.Event).Info("WhatsApp login event")
		}
	}

	if client.Store.ID == nil {
		client.Disconnect()
		return nil, fmt.Errorf("whatsapp pairing did not complete")
	}
	return client, nil
}
