package timingattack

import (
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"io"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// DatasetParser loads observation records from a file.
type DatasetParser interface {
	ParseDataset(source string) (Dataset, error)
}

// CSVParser reads records from a CSV file with a header row. Empty column
// names fall back to "message", "signature" and "duration".
type CSVParser struct {
	MessageCol   string
	SignatureCol string
	DurationCol  string
}

// ParseDataset implements DatasetParser.
func (p *CSVParser) ParseDataset(source string) (Dataset, error) {
	file, err := os.Open(source)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open dataset")
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read header")
	}

	messageCol := defaultCol(p.MessageCol, "message")
	signatureCol := defaultCol(p.SignatureCol, "signature")
	durationCol := defaultCol(p.DurationCol, "duration")

	messageIdx, signatureIdx, durationIdx := -1, -1, -1
	for i, col := range header {
		switch col {
		case messageCol:
			messageIdx = i
		case signatureCol:
			signatureIdx = i
		case durationCol:
			durationIdx = i
		}
	}
	if messageIdx == -1 || signatureIdx == -1 || durationIdx == -1 {
		return nil, errors.Errorf("missing required columns %q, %q or %q",
			messageCol, signatureCol, durationCol)
	}

	dataset := make(Dataset, 0)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read record")
		}
		if len(row) <= messageIdx || len(row) <= signatureIdx || len(row) <= durationIdx {
			return nil, errors.Errorf("short row with %d columns", len(row))
		}

		message, err := parseBigInt(row[messageIdx])
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse message")
		}
		signature, err := parseBigInt(row[signatureIdx])
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse signature")
		}
		duration, err := strconv.ParseFloat(strings.TrimSpace(row[durationIdx]), 64)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse duration")
		}

		dataset = append(dataset, &Record{Message: message, Signature: signature, Duration: duration})
	}
	return dataset, nil
}

// JSONParser reads records from a JSON array of objects. Empty field names
// fall back to "message", "signature" and "duration".
type JSONParser struct {
	MessageField   string
	SignatureField string
	DurationField  string
}

// ParseDataset implements DatasetParser.
func (p *JSONParser) ParseDataset(source string) (Dataset, error) {
	file, err := os.Open(source)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open dataset")
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	decoder.UseNumber() // preserve large integers

	var items []map[string]interface{}
	if err := decoder.Decode(&items); err != nil {
		return nil, errors.Wrap(err, "failed to parse JSON")
	}

	messageField := defaultCol(p.MessageField, "message")
	signatureField := defaultCol(p.SignatureField, "signature")
	durationField := defaultCol(p.DurationField, "duration")

	dataset := make(Dataset, 0, len(items))
	for _, item := range items {
		messageVal, ok := item[messageField]
		if !ok {
			return nil, errors.Errorf("missing %q field", messageField)
		}
		message, err := parseBigInt(messageVal)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse message")
		}

		signatureVal, ok := item[signatureField]
		if !ok {
			return nil, errors.Errorf("missing %q field", signatureField)
		}
		signature, err := parseBigInt(signatureVal)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse signature")
		}

		durationVal, ok := item[durationField]
		if !ok {
			return nil, errors.Errorf("missing %q field", durationField)
		}
		duration, err := parseFloat(durationVal)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse duration")
		}

		dataset = append(dataset, &Record{Message: message, Signature: signature, Duration: duration})
	}
	return dataset, nil
}

// WriteCSV persists a dataset with the standard header row.
func WriteCSV(path string, data Dataset) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create dataset file")
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"message", "signature", "duration"}); err != nil {
		return errors.Wrap(err, "failed to write header")
	}
	for _, rec := range data {
		row := []string{
			rec.Message.Text(10),
			rec.Signature.Text(10),
			strconv.FormatFloat(rec.Duration, 'f', -1, 64),
		}
		if err := writer.Write(row); err != nil {
			return errors.Wrap(err, "failed to write record")
		}
	}
	writer.Flush()
	return errors.Wrap(writer.Error(), "failed to flush dataset")
}

func defaultCol(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

// parseBigInt parses an integer from the formats datasets show up in:
// decimal strings, 0x-prefixed or bare hex strings, and JSON numbers.
func parseBigInt(val interface{}) (*big.Int, error) {
	switch v := val.(type) {
	case string:
		s := strings.TrimSpace(v)
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
			if err != nil {
				return nil, errors.Errorf("invalid hex number: %s", v)
			}
			return new(big.Int).SetBytes(raw), nil
		}
		z := new(big.Int)
		if _, ok := z.SetString(s, 10); ok {
			return z, nil
		}
		if _, ok := z.SetString(s, 16); ok {
			return z, nil
		}
		return nil, errors.Errorf("invalid number format: %s", v)

	case json.Number:
		z := new(big.Int)
		if _, ok := z.SetString(string(v), 10); !ok {
			return nil, errors.Errorf("invalid number format: %s", v)
		}
		return z, nil

	case float64:
		// Only reachable when the decoder was not configured with UseNumber;
		// precision is already lost for very large values.
		z := new(big.Int)
		if _, ok := z.SetString(strconv.FormatFloat(v, 'f', 0, 64), 10); !ok {
			return nil, errors.Errorf("invalid number format: %v", v)
		}
		return z, nil

	case int64:
		return big.NewInt(v), nil

	case int:
		return big.NewInt(int64(v)), nil

	default:
		return nil, errors.Errorf("unsupported type: %T", val)
	}
}

func parseFloat(val interface{}) (float64, error) {
	switch v := val.(type) {
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	case json.Number:
		return v.Float64()
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	default:
		return 0, errors.Errorf("unsupported type: %T", val)
	}
}
