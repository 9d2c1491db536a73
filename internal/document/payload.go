package document

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Payload is the display data stored with each document. It is never used
// for ranking.
type Payload struct {
	From       string `json:"From"`
	To         string `json:"To"`
	Cc         string `json:"Cc,omitempty"`
	Title      string `json:"Title"`
	Date       string `json:"Date"`
	Sample     string `json:"Sample"`
	Filename   string `json:"Filename"`
	MessageNum int    `json:"MessageNum"`
}

// Marshal encodes the payload as a JSON object.
func (p Payload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// DecodePayload decodes a stored payload. JSON objects are the current
// format; anything else is read as first generation "Key=Value" lines.
func DecodePayload(data []byte) (Payload, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var p Payload
		if err := json.Unmarshal(trimmed, &p); err != nil {
			return Payload{}, fmt.Errorf("decode payload: %w", err)
		}
		return p, nil
	}
	return decodeKeyValue(data)
}

func decodeKeyValue(data []byte) (Payload, error) {
	var p Payload
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "From":
			p.From = value
		case "To":
			p.To = value
		case "Cc":
			p.Cc = value
		case "Title", "Subject":
			p.Title = value
		case "Date":
			p.Date = value
		case "Sample":
			p.Sample = value
		case "Filename":
			p.Filename = value
		case "MessageNum":
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return Payload{}, fmt.Errorf("decode payload: bad MessageNum %q", value)
			}
			p.MessageNum = n
		}
	}
	if err := sc.Err(); err != nil {
		return Payload{}, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}
