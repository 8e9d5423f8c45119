package main

import (
	"encoding/base64"

	qrcode "github.com/skip2/go-qrcode"
)

// guideURL is the community modding guide. Shown as a QR code so the user can
// keep it open on a phone while the console is apart.
const guideURL = "https://3ds.hacks.guide/"

func guideQRCodeDataURL() (string, error) {
	png, err := qrcode.Encode(guideURL, qrcode.Medium, 220)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
