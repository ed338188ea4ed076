package decoder

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"qrcode_dashboard/graph/model"

	"github.com/google/uuid"
)

// DecodeError текст со сканера не удалось превратить в ScanPayload
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "decode scan payload: " + e.Reason
}

const (
	ReasonUnrecognizedFormat = "unrecognized format"
	ReasonUnsupportedVersion = "unsupported version"
	ReasonInvalidTimestamp   = "invalid timestamp"
	ReasonInvalidID          = "invalid id format"
)

var (
	numberPattern = regexp.MustCompile(`^-?\d+(\.\d+)?([eE][+-]?\d+)?$`)

	// ключ:значение или ключ=значение, кавычки вокруг ключа и значения необязательны
	loosePatterns = map[string]*regexp.Regexp{
		"id": looseField("id"),
		"sg": looseField("sg"),
		"t":  looseField("t"),
		"v":  looseField("v"),
	}
)

func looseField(key string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|[^A-Za-z0-9_])["']?` + key + `["']?\s*[:=]\s*["']?([^"',;}\s]+)`)
}

// Decode разбирает текст с камеры или из файла. Сначала строгий JSON,
// затем разбор по шаблону ключ:значение.
func Decode(raw string) (*model.ScanPayload, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &DecodeError{Reason: ReasonUnrecognizedFormat}
	}

	fields, ok := parseJSON(raw)
	if !ok {
		fields, ok = parseLoose(raw)
	}
	if !ok {
		return nil, &DecodeError{Reason: ReasonUnrecognizedFormat}
	}

	return buildPayload(fields)
}

func parseJSON(raw string) (map[string]string, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &obj); err != nil || obj == nil {
		return nil, false
	}

	fields := make(map[string]string, 4)
	for _, key := range []string{"id", "sg", "t", "v"} {
		if value, ok := scalarString(obj[key]); ok {
			fields[key] = value
		}
	}
	return fields, true
}

// scalarString приводит JSON-строку или число к строке; объекты, массивы и null отбрасываются
func scalarString(value json.RawMessage) (string, bool) {
	value = bytes.TrimSpace(value)
	if len(value) == 0 {
		return "", false
	}

	if value[0] == '"' {
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return "", false
		}
		return strings.TrimSpace(s), true
	}

	if numberPattern.Match(value) {
		return string(value), true
	}
	return "", false
}

func parseLoose(raw string) (map[string]string, bool) {
	fields := make(map[string]string, 4)
	for key, pattern := range loosePatterns {
		if m := pattern.FindStringSubmatch(raw); m != nil {
			fields[key] = m[1]
		}
	}
	return fields, len(fields) > 0
}

func buildPayload(fields map[string]string) (*model.ScanPayload, error) {
	for _, key := range []string{"id", "sg", "t", "v"} {
		if fields[key] == "" {
			return nil, &DecodeError{Reason: "missing " + key}
		}
	}

	if !numberPattern.MatchString(fields["t"]) {
		return nil, &DecodeError{Reason: ReasonInvalidTimestamp}
	}

	version := model.QRVersion(strings.ToUpper(fields["v"]))
	if !version.IsValid() {
		return nil, &DecodeError{Reason: ReasonUnsupportedVersion}
	}

	return &model.ScanPayload{
		ID:        fields["id"],
		Signature: fields["sg"],
		Timestamp: json.Number(fields["t"]),
		Version:   version,
	}, nil
}

// ValidateID проверяет, что идентификатор QR-кода имеет вид UUID v4
func ValidateID(id string) error {
	if len(id) != 36 {
		return &DecodeError{Reason: ReasonInvalidID}
	}
	parsed, err := uuid.Parse(id)
	if err != nil || parsed.Version() != 4 || parsed.Variant() != uuid.RFC4122 {
		return &DecodeError{Reason: ReasonInvalidID}
	}
	return nil
}
