package helpers

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"
	"text/tabwriter"
)

// OutputFormat represents the desired output format.
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatCSV   OutputFormat = "csv"
)

// Formatter writes a slice of rows. Table and CSV output use the fields
// tagged with `header`; JSON output uses the json tags.
type Formatter interface {
	Format(rows any, w io.Writer) error
}

// NewFormatter creates a new Formatter for the given format.
func NewFormatter(format OutputFormat) (Formatter, error) {
	switch format {
	case FormatTable:
		return tableFormatter{}, nil
	case FormatJSON:
		return jsonFormatter{}, nil
	case FormatCSV:
		return csvFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

type jsonFormatter struct{}

func (jsonFormatter) Format(rows any, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

type tableFormatter struct{}

func (tableFormatter) Format(rows any, w io.Writer) error {
	headers, records, err := tabulate(rows)
	if err != nil || headers == nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	if _, err := fmt.Fprintln(tw, strings.Join(headers, "\t")); err != nil {
		return err
	}
	for _, rec := range records {
		if _, err := fmt.Fprintln(tw, strings.Join(rec, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}

type csvFormatter struct{}

func (csvFormatter) Format(rows any, w io.Writer) error {
	headers, records, err := tabulate(rows)
	if err != nil || headers == nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return err
	}
	if err := cw.WriteAll(records); err != nil {
		return err
	}
	return cw.Error()
}

// tabulate turns a slice of structs into header and row strings. An empty
// slice yields no headers.
func tabulate(rows any) ([]string, [][]string, error) {
	val := reflect.ValueOf(rows)
	if val.Kind() != reflect.Slice {
		return nil, nil, fmt.Errorf("rows must be a slice, got %T", rows)
	}
	if val.Len() == 0 {
		return nil, nil, nil
	}

	elem := val.Type().Elem()
	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}
	if elem.Kind() != reflect.Struct {
		return nil, nil, fmt.Errorf("rows must hold structs, got %s", elem)
	}

	var (
		headers []string
		fields  []int
	)
	for i := 0; i < elem.NumField(); i++ {
		if h := elem.Field(i).Tag.Get("header"); h != "" {
			headers = append(headers, h)
			fields = append(fields, i)
		}
	}

	records := make([][]string, 0, val.Len())
	for i := 0; i < val.Len(); i++ {
		row := reflect.Indirect(val.Index(i))
		rec := make([]string, len(fields))
		for j, f := range fields {
			rec[j] = fmt.Sprintf("%v", row.Field(f).Interface())
		}
		records = append(records, rec)
	}
	return headers, records, nil
}
