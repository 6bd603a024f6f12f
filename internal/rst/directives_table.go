package rst

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"maps"
	"strconv"
	"strings"

	"github.com/electwix/rst-lint/internal/construct"
	"github.com/electwix/rst-lint/internal/diagnostics"
	"github.com/electwix/rst-lint/internal/document"
	"github.com/electwix/rst-lint/internal/source"
)

func tableOptions(extra map[string]construct.OptionConverter) map[string]construct.OptionConverter {
	opts := map[string]construct.OptionConverter{
		"align":  construct.Choice(alignHorizontal...),
		"widths": construct.Unchanged,
		"width":  construct.LengthOrPercentageOrUnitless,
	}
	maps.Copy(opts, extra)
	return commonOptions(opts)
}

// tableTitle parses the optional title argument.
func tableTitle(call *construct.DirectiveCall) (*document.Node, []*document.Node) {
	if len(call.Arguments) == 0 {
		return nil, nil
	}
	return inlineTitle(call, document.KindTitle, call.Arguments[0])
}

var tableDirective = newDirective(construct.DirectiveSpec{
	OptionalArguments:       1,
	FinalArgumentWhitespace: true,
	Options:                 tableOptions(nil),
	HasContent:              true,
}, func(call *construct.DirectiveCall) ([]*document.Node, error) {
	if len(call.Content) == 0 {
		return []*document.Node{report(call, diagnostics.LevelWarning,
			fmt.Sprintf("Content block expected for the \"%s\" directive; none found.", call.Name), true)}, nil
	}
	title, msgs := tableTitle(call)
	body := document.NewElement(document.KindContainer)
	call.State.NestedParse(call.Content, call.ContentOffset, body)
	if len(body.Children) != 1 || body.Children[0].Kind != document.KindTable {
		return nil, call.Errorf("Error parsing content block for the \"%s\" directive: exactly one table expected.", call.Name)
	}
	table := body.Children[0]
	table.Remove()
	if title != nil {
		table.Insert(0, title)
	}
	table.Line = call.Line
	return append([]*document.Node{table}, msgs...), nil
})

// tableDimensions are the header-rows and stub-columns options.
type tableDimensions struct {
	headerRows  int
	stubColumns int
}

func dimensions(call *construct.DirectiveCall) tableDimensions {
	var d tableDimensions
	d.headerRows, _ = strconv.Atoi(call.Options["header-rows"])
	d.stubColumns, _ = strconv.Atoi(call.Options["stub-columns"])
	return d
}

// check validates the dimensions against the rows of a table.
func (d tableDimensions) check(call *construct.DirectiveCall, rows [][]string) error {
	if len(rows) < d.headerRows {
		return call.Errorf("%d header row(s) specified but only %d row(s) of data supplied (\"%s\" directive).",
			d.headerRows, len(rows), call.Name)
	}
	if len(rows) == d.headerRows && d.headerRows > 0 {
		return call.Errorf("Insufficient data supplied (%d row(s)); no data remaining for table body, "+
			"required by \"%s\" directive.", len(rows), call.Name)
	}
	for _, row := range rows {
		if len(row) < d.stubColumns {
			return call.Errorf("%d stub column(s) specified but only %d columns(s) of data supplied (\"%s\" directive).",
				d.stubColumns, len(row), call.Name)
		}
		if len(row) == d.stubColumns && d.stubColumns > 0 {
			return call.Errorf("Insufficient data supplied (%d columns(s)); no data remaining for table body, "+
				"required by \"%s\" directive.", len(row), call.Name)
		}
	}
	return nil
}

// checkWidths validates the widths option against the column count.
func checkWidths(call *construct.DirectiveCall, columns int) error {
	w := strings.TrimSpace(call.Options["widths"])
	if w == "" || w == "auto" || w == "grid" {
		return nil
	}
	fields := strings.FieldsFunc(w, func(r rune) bool { return r == ',' || r == ' ' })
	for _, f := range fields {
		if n, err := strconv.Atoi(f); err != nil || n < 0 {
			return call.Errorf("Error in \"%s\" directive:\n\"widths\" must be \"auto\", \"grid\", "+
				"or a list of positive integers.", call.Name)
		}
	}
	if len(fields) != columns {
		return call.Errorf("\"%s\" widths do not match the number of columns in table (%d).", call.Name, columns)
	}
	return nil
}

// buildTable assembles a table from cells already parsed into entries.
func buildTable(call *construct.DirectiveCall, title *document.Node, rows [][]*document.Node, d tableDimensions) *document.Node {
	table, _ := element(call, document.KindTable)
	if title != nil {
		table.Append(title)
	}
	for i, cells := range rows {
		row := document.NewElement(document.KindRow, cells...)
		if i < d.headerRows {
			row.SetAttr("header", "true")
		}
		table.Append(row)
	}
	return table
}

var csvTableDirective = newDirective(construct.DirectiveSpec{
	OptionalArguments:       1,
	FinalArgumentWhitespace: true,
	Options: tableOptions(map[string]construct.OptionConverter{
		"header-rows":  construct.NonNegativeInt,
		"stub-columns": construct.NonNegativeInt,
		"header":       construct.Unchanged,
		"file":         construct.URI,
		"url":          construct.URI,
		"encoding":     construct.UnchangedRequired,
		"delim":        construct.SingleChar,
		"keepspace":    construct.Flag,
		"quote":        construct.SingleChar,
		"escape":       construct.SingleChar,
	}),
	HasContent: true,
}, func(call *construct.DirectiveCall) ([]*document.Node, error) {
	data, err := csvSource(call)
	if err != nil {
		return nil, err
	}
	title, msgs := tableTitle(call)

	var rows [][]string
	if h, ok := call.Options["header"]; ok {
		header, err := readCSV(call, h)
		if err != nil {
			return nil, call.Errorf("Error with CSV data in \"%s\" directive:\n%s", call.Name, err)
		}
		rows = append(rows, header...)
	}
	body, err := readCSV(call, data)
	if err != nil {
		return nil, call.Errorf("Error with CSV data in \"%s\" directive:\n%s", call.Name, err)
	}
	rows = append(rows, body...)
	if len(rows) == 0 {
		return nil, call.Errorf("No table data detected in CSV file.")
	}

	d := dimensions(call)
	if _, ok := call.Options["header"]; ok {
		d.headerRows++
	}
	if err := d.check(call, rows); err != nil {
		return nil, err
	}
	columns := 0
	for _, r := range rows {
		columns = max(columns, len(r))
	}
	if err := checkWidths(call, columns); err != nil {
		return nil, err
	}

	entries := make([][]*document.Node, len(rows))
	for i, r := range rows {
		for c := range columns {
			entry := document.NewElement(document.KindEntry)
			if c < len(r) && strings.TrimSpace(r[c]) != "" {
				call.State.NestedParse(strings.Split(r[c], "\n"), call.ContentOffset, entry)
			}
			entries[i] = append(entries[i], entry)
		}
	}
	return append([]*document.Node{buildTable(call, title, entries, d)}, msgs...), nil
})

// csvSource returns the CSV text from the directive content or file.
func csvSource(call *construct.DirectiveCall) (string, error) {
	file, hasFile := call.Options["file"]
	_, hasURL := call.Options["url"]
	switch {
	case len(call.Content) > 0:
		if hasFile || hasURL {
			return "", call.Errorf("\"%s\" directive may not both specify an external file and have content.", call.Name)
		}
		return strings.Join(call.Content, "\n"), nil
	case hasFile && hasURL:
		return "", call.Errorf("The \"file\" and \"url\" options may not be simultaneously specified "+
			"for the \"%s\" directive.", call.Name)
	case hasFile:
		path := resolvePath(call, file)
		call.State.Document().AddDependency(path)
		text, err := source.ReadFile(path, call.Options["encoding"])
		if err != nil {
			return "", call.Severef("Problems with \"%s\" directive path:\n%s.", call.Name, inputError(path, err))
		}
		return text, nil
	case hasURL:
		return "", &construct.DirectiveError{Level: diagnostics.LevelWarning,
			Message: fmt.Sprintf("Problems with \"%s\" directive URL \"%s\":\nremote tables are not fetched.",
				call.Name, call.Options["url"])}
	default:
		return "", &construct.DirectiveError{Level: diagnostics.LevelWarning,
			Message: fmt.Sprintf("The \"%s\" directive requires content; none supplied.", call.Name)}
	}
}

// readCSV parses data with the directive's dialect. A custom quote
// character is swapped with '"' around the parse.
func readCSV(call *construct.DirectiveCall, data string) ([][]string, error) {
	quote := call.Options["quote"]
	if quote != "" && quote != `"` {
		data = swapRunes(data, quote, `"`)
	}
	r := csv.NewReader(strings.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	_, keep := call.Options["keepspace"]
	r.TrimLeadingSpace = !keep
	if d := call.Options["delim"]; d != "" {
		r.Comma = []rune(d)[0]
	}

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if quote != "" && quote != `"` {
			for i := range rec {
				rec[i] = swapRunes(rec[i], quote, `"`)
			}
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func swapRunes(s, a, b string) string {
	const hold = "\x00"
	s = strings.ReplaceAll(s, a, hold)
	s = strings.ReplaceAll(s, b, a)
	return strings.ReplaceAll(s, hold, b)
}

var listTableDirective = newDirective(construct.DirectiveSpec{
	OptionalArguments:       1,
	FinalArgumentWhitespace: true,
	Options: tableOptions(map[string]construct.OptionConverter{
		"header-rows":  construct.NonNegativeInt,
		"stub-columns": construct.NonNegativeInt,
	}),
	HasContent: true,
}, func(call *construct.DirectiveCall) ([]*document.Node, error) {
	if len(call.Content) == 0 {
		return nil, call.Errorf("The \"%s\" directive is empty; content required.", call.Name)
	}
	title, msgs := tableTitle(call)
	body := document.NewElement(document.KindContainer)
	call.State.NestedParse(call.Content, call.ContentOffset, body)

	prefix := fmt.Sprintf("Error parsing content block for the \"%s\" directive: ", call.Name)
	if len(body.Children) != 1 || body.Children[0].Kind != document.KindBulletList {
		return nil, call.Errorf("%sexactly one bullet list expected.", prefix)
	}
	list := body.Children[0]
	columns := 0
	texts := make([][]string, len(list.Children))
	cells := make([][]*document.Node, len(list.Children))
	for i, item := range list.Children {
		if len(item.Children) != 1 || item.Children[0].Kind != document.KindBulletList {
			return nil, call.Errorf("%stwo-level bullet list expected, but row %d does not contain "+
				"a second-level bullet list.", prefix, i+1)
		}
		row := item.Children[0]
		if i == 0 {
			columns = len(row.Children)
		} else if len(row.Children) != columns {
			return nil, call.Errorf("%suniform two-level bullet list expected, but row %d does not contain "+
				"the same number of items as row 1 (%d vs %d).", prefix, i+1, len(row.Children), columns)
		}
		for _, cell := range detachAll(row.Children) {
			texts[i] = append(texts[i], cell.AsText())
			entry := document.NewElement(document.KindEntry, detachAll(cell.Children)...)
			cells[i] = append(cells[i], entry)
		}
	}

	d := dimensions(call)
	if err := d.check(call, texts); err != nil {
		return nil, err
	}
	if err := checkWidths(call, columns); err != nil {
		return nil, err
	}
	return append([]*document.Node{buildTable(call, title, cells, d)}, msgs...), nil
})
