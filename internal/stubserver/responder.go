package stubserver

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"strings"

	"github.com/nachoal/coding-agent-server/llm"
)

type namedColor struct {
	name    string
	r, g, b float64
}

var palette = []namedColor{
	{"red", 255, 0, 0},
	{"green", 0, 128, 0},
	{"blue", 0, 0, 255},
	{"yellow", 255, 255, 0},
	{"orange", 255, 165, 0},
	{"purple", 128, 0, 128},
	{"black", 0, 0, 0},
	{"white", 255, 255, 255},
	{"gray", 128, 128, 128},
}

// ColorResponder names the average color of the first attached image of the last
// user turn. Without an image it echoes the turn's final text block.
func ColorResponder(req *llm.ChatRequest) string {
	msg := lastUserMessage(req)
	if msg == nil {
		return ""
	}

	var lastText string
	for _, part := range msg.Parts {
		switch part.Type {
		case llm.PartTypeImageURL:
			if part.ImageURL == nil {
				continue
			}
			if name, ok := colorOfDataURI(part.ImageURL.URL); ok {
				return name
			}
		case llm.PartTypeText:
			lastText = part.Text
		}
	}
	if msg.Content != nil {
		return *msg.Content
	}
	return lastText
}

// EchoResponder returns the final text block of the last user turn
func EchoResponder(req *llm.ChatRequest) string {
	msg := lastUserMessage(req)
	if msg == nil {
		return ""
	}
	if msg.Content != nil {
		return *msg.Content
	}
	for i := len(msg.Parts) - 1; i >= 0; i-- {
		if msg.Parts[i].Type == llm.PartTypeText {
			return msg.Parts[i].Text
		}
	}
	return ""
}

func lastUserMessage(req *llm.ChatRequest) *llm.Message {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == llm.RoleUser {
			return &req.Messages[i]
		}
	}
	return nil
}

func colorOfDataURI(uri string) (string, bool) {
	idx := strings.Index(uri, ";base64,")
	if !strings.HasPrefix(uri, "data:") || idx < 0 {
		return "", false
	}
	raw, err := base64.StdEncoding.DecodeString(uri[idx+len(";base64,"):])
	if err != nil {
		return "", false
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", false
	}
	return nearestColor(img), true
}

func nearestColor(img image.Image) string {
	bounds := img.Bounds()
	var sr, sg, sb, n float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			if a == 0 {
				continue
			}
			sr += float64(r >> 8)
			sg += float64(g >> 8)
			sb += float64(b >> 8)
			n++
		}
	}
	if n == 0 {
		return "transparent"
	}
	sr, sg, sb = sr/n, sg/n, sb/n

	best, bestDist := "", math.MaxFloat64
	for _, c := range palette {
		d := (sr-c.r)*(sr-c.r) + (sg-c.g)*(sg-c.g) + (sb-c.b)*(sb-c.b)
		if d < bestDist {
			best, bestDist = c.name, d
		}
	}
	return best
}
