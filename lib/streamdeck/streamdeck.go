package streamdeck

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	xdraw "golang.org/x/image/draw"

	"rafaelmartins.com/p/usbhid"
)

const elgatoVendorID = 0x0fd9

type Model struct {
	Name     string
	Keys     int
	KeyRows  int
	KeyCols  int
	KeySize  int
	FlipKeys bool
}

var ModelXL = Model{
	Name:     "XL",
	Keys:     32,
	KeyRows:  4,
	KeyCols:  8,
	KeySize:  96,
	FlipKeys: true,
}

var ModelPlus = Model{
	Name:    "Plus",
	Keys:    8,
	KeyRows: 2,
	KeyCols: 4,
	KeySize: 120,
}

var productModels = map[uint16]*Model{
	0x006c: &ModelXL,
	0x008f: &ModelXL,
	0x0084: &ModelPlus,
}

type Device struct {
	dev   *usbhid.Device
	model *Model
}

func Open() (*Device, error) {
	devices, err := usbhid.Enumerate(func(dev *usbhid.Device) bool {
		return dev.VendorId() == elgatoVendorID && productModels[dev.ProductId()] != nil
	})
	if err != nil {
		return nil, fmt.Errorf("streamdeck: enumerate: %w", err)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("streamdeck: no device found")
	}

	dev := devices[0]
	model := productModels[dev.ProductId()]
	if err := dev.Open(true); err != nil {
		return nil, fmt.Errorf("streamdeck: open: %w", err)
	}

	return &Device{dev: dev, model: model}, nil
}

func (d *Device) Model() *Model { return d.model }
func (d *Device) Keys() int { return d.model.Keys }
func (d *Device) Close() error { return d.dev.Close() }

func (d *Device) SetBrightness(perc byte) error {
	if perc > 100 {
		perc = 100
	}
	pl := make([]byte, d.dev.GetFeatureReportLength())
	pl[0] = 0x08
	pl[1] = perc
	return d.dev.SetFeatureReport(3, pl)
}

func (d *Device) SetKeyImage(key int, img image.Image) error {
	if key < 0 || key >= d.model.Keys {
		return fmt.Errorf("streamdeck: invalid key %d", key)
	}

	sz := d.model.KeySize
	scaled := image.NewRGBA(image.Rect(0, 0, sz, sz))
	xdraw.BiLinear.Scale(scaled, scaled.Bounds(), img, img.Bounds(), xdraw.Over, nil)

	var src image.Image = scaled
	if d.model.FlipKeys {
		flipped := image.NewRGBA(scaled.Bounds())
		for y := 0; y < sz; y++ {
			for x := 0; x < sz; x++ {
				flipped.Set(sz-1-x, sz-1-y, scaled.At(x, y))
			}
		}
		src = flipped
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: 100}); err != nil {
		return err
	}

	return d.sendKeyImage(byte(key), buf.Bytes())
}

func (d *Device) SetKeyText(key int, bg color.Color, fg color.Color, text string) error {
	return d.SetKeyImage(key, TextImage(d.model.KeySize, bg, fg, text))
}

func (d *Device) sendKeyImage(key byte, imgData []byte) error {
	reportLen := d.dev.GetOutputReportLength()
	for _, page := range keyImagePages(key, imgData, int(reportLen)) {
		if err := d.dev.SetOutputReport(2, page); err != nil {
			return err
		}
	}
	return nil
}

// keyImagePages splits a JPEG into output reports with the 8-byte key
// image header. Each report is padded to reportLen.
func keyImagePages(key byte, imgData []byte, reportLen int) [][]byte {
	const hdrLen = 8
	payloadLen := reportLen - hdrLen

	var pages [][]byte
	var page int
	for start := 0; start < len(imgData); page++ {
		end := start + payloadLen
		last := byte(0)
		if end >= len(imgData) {
			end = len(imgData)
			last = 1
		}

		chunk := imgData[start:end]
		payload := make([]byte, reportLen)
		copy(payload, []byte{
			0x02,
			0x07,
			key,
			last,
			byte(len(chunk)),
			byte(len(chunk) >> 8),
			byte(page),
			byte(page >> 8),
		})
		copy(payload[hdrLen:], chunk)
		pages = append(pages, payload)
		start = end
	}
	return pages
}
