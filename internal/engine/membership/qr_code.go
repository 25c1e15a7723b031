package membership

import (
	"errors"

	"github.com/skip2/go-qrcode"
)

// InvitationQRCode renders the invitation code as a PNG so it can be scanned
// from another device.
func InvitationQRCode(code string, size int) ([]byte, error) {
	if size == 0 {
		size = 256
	}
	if size < 128 || size > 1024 {
		return nil, errors.New("invalid size: must be between 128 and 1024")
	}

	qr, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	return qr.PNG(size)
}
