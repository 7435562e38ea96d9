// Package artwork fetches album art from an MPRIS art URL and renders it for
// terminals that speak the Kitty graphics protocol.
package artwork

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/EdlinOrg/prominentcolor"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp"
)

// Largest art payload we are willing to read.
const maxArtBytes = 16 << 20

// Options sizes the encoded image.
type Options struct {
	WidthPixels  int
	WidthColumns int
}

// Fetch reads the bytes behind an mpris:artUrl. file:// and http(s):// are supported.
func Fetch(ctx context.Context, artURL string) ([]byte, error) {
	if artURL == "" {
		return nil, fmt.Errorf("no artwork URL")
	}

	u, err := url.Parse(artURL)
	if err != nil {
		return nil, fmt.Errorf("parse artwork URL: %w", err)
	}

	switch u.Scheme {
	case "file":
		data, err := os.ReadFile(u.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read artwork file: %w", err)
		}
		return data, nil

	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, artURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to download artwork: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("artwork download failed with status: %d", resp.StatusCode)
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtBytes))
		if err != nil {
			return nil, fmt.Errorf("failed to read artwork data: %w", err)
		}
		return data, nil
	}

	return nil, fmt.Errorf("unsupported artwork URL scheme: %s", artURL)
}

// Decode turns raw or base64-encoded image bytes into an image.
func Decode(data []byte) (image.Image, error) {
	imageData := data
	if decoded, err := base64.StdEncoding.DecodeString(string(data)); err == nil {
		imageData = decoded
	}

	if len(imageData) == 0 {
		return nil, fmt.Errorf("empty image data")
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// DominantColor picks a vibrant colour from img that reads well on a dark
// background and returns it as "#rrggbb".
func DominantColor(img image.Image) (string, error) {
	if img == nil {
		return "", fmt.Errorf("nil image")
	}

	bounds := img.Bounds()

	// Sample every 5th pixel
	counts := make(map[uint32]int)
	const sampleRate = 5
	for y := bounds.Min.Y; y < bounds.Max.Y; y += sampleRate {
		for x := bounds.Min.X; x < bounds.Max.X; x += sampleRate {
			r, g, b, a := img.At(x, y).RGBA()
			if a < 32768 {
				continue
			}
			rgb := (uint32(r>>8) << 16) | (uint32(g>>8) << 8) | uint32(b>>8)
			counts[rgb]++
		}
	}

	type candidate struct {
		rgb   uint32
		score float64
	}
	var candidates []candidate

	for rgb, count := range counts {
		lightness, saturation := hsl(rgb)

		// Too dark, washed out, or grey
		if lightness < 0.3 || lightness > 0.85 || saturation < 0.25 {
			continue
		}

		lightnessScore := lightness
		if lightness > 0.7 {
			lightnessScore = 0.7 - (lightness - 0.7)
		}
		score := saturation*2.5 + lightnessScore*1.5 + float64(count)/1000.0
		candidates = append(candidates, candidate{rgb: rgb, score: score})
	}

	if len(candidates) == 0 {
		colors, err := prominentcolor.Kmeans(img)
		if err != nil || len(colors) == 0 {
			return "", fmt.Errorf("no suitable colors found")
		}
		c := colors[0]
		return fmt.Sprintf("#%02x%02x%02x", c.Color.R, c.Color.G, c.Color.B), nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].rgb < candidates[j].rgb
	})

	best := candidates[0].rgb
	return fmt.Sprintf("#%02x%02x%02x", uint8(best>>16), uint8(best>>8), uint8(best)), nil
}

// hsl returns the lightness and saturation of a packed 0xRRGGBB colour.
func hsl(rgb uint32) (lightness, saturation float64) {
	rf := float64(uint8(rgb>>16)) / 255.0
	gf := float64(uint8(rgb>>8)) / 255.0
	bf := float64(uint8(rgb)) / 255.0

	hi := max(rf, gf, bf)
	lo := min(rf, gf, bf)
	lightness = (hi + lo) / 2.0

	if hi != lo {
		if lightness > 0.5 {
			saturation = (hi - lo) / (2.0 - hi - lo)
		} else {
			saturation = (hi - lo) / (hi + lo)
		}
	}
	return lightness, saturation
}

// SupportsKitty reports whether the terminal understands Kitty graphics.
func SupportsKitty() bool {
	term := os.Getenv("TERM")
	termProgram := os.Getenv("TERM_PROGRAM")

	if strings.Contains(term, "kitty") || strings.Contains(term, "konsole") {
		return true
	}
	if termProgram == "ghostty" || termProgram == "WezTerm" {
		return true
	}
	return false
}

// Kitty protocol limit per escape sequence
const chunkSize = 4096

// Fixed id so a new card replaces the previous image
const imageID = 42

// DeleteAll is the escape sequence that removes every placed image.
const DeleteAll = "\033_Ga=d,d=A\033\\"

// EncodeKitty scales img to opts.WidthPixels and wraps it in Kitty graphics
// escape sequences sized to opts.WidthColumns cells.
func EncodeKitty(img image.Image, opts Options) (string, error) {
	if img == nil {
		return "", fmt.Errorf("nil image")
	}
	if opts.WidthPixels <= 0 || opts.WidthColumns <= 0 {
		return "", fmt.Errorf("invalid artwork size %dpx/%d columns", opts.WidthPixels, opts.WidthColumns)
	}

	resized := resize.Resize(uint(opts.WidthPixels), 0, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := png.Encode(&buf, resized); err != nil {
		return "", fmt.Errorf("failed to encode PNG: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())

	var result strings.Builder
	fmt.Fprintf(&result, "\033_Ga=d,d=I,i=%d\033\\", imageID)

	if len(encoded) <= chunkSize {
		fmt.Fprintf(&result, "\033_Ga=T,f=100,t=d,i=%d,c=%d,C=1;%s\033\\", imageID, opts.WidthColumns, encoded)
		return result.String(), nil
	}

	for i := 0; i < len(encoded); i += chunkSize {
		end := min(i+chunkSize, len(encoded))
		chunk := encoded[i:end]

		switch {
		case i == 0:
			fmt.Fprintf(&result, "\033_Ga=T,f=100,t=d,i=%d,c=%d,C=1,m=1;%s\033\\", imageID, opts.WidthColumns, chunk)
		case end == len(encoded):
			fmt.Fprintf(&result, "\033_Gm=0;%s\033\\", chunk)
		default:
			fmt.Fprintf(&result, "\033_Gm=1;%s\033\\", chunk)
		}
	}
	return result.String(), nil
}

// Process decodes data once and returns the dominant colour (when
// extractColor is set) and the Kitty-encoded image.
func Process(data []byte, extractColor bool, opts Options) (color, encoded string, err error) {
	img, err := Decode(data)
	if err != nil {
		return "", "", err
	}

	if extractColor {
		if c, err := DominantColor(img); err == nil {
			color = c
		}
	}

	encoded, err = EncodeKitty(img, opts)
	if err != nil {
		return color, "", err
	}
	return color, encoded, nil
}
