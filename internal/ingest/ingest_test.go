package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/readiness-cli/internal/model"
	"github.com/sells-group/readiness-cli/internal/registry"
)

const recordsCSV = `ID,Country,Indicator_Code,Value,Period,Source,Source Type,Confidence,Coverage,Is_Proxy
r1,KE,emr_adoption_pct,41.5,2023,MoH HMIS,official_statistical,0.9,national,
r2,Côte d'Ivoire,data_protection_law,enacted,2021-Q3,Journal Officiel,policy_document,0.8,,no
,Nigeria,who_strategy_alignment,yes,2022,WHO survey,peer_reviewed,0.7
`

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "records.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func testConverter(t *testing.T) *Converter {
	t.Helper()
	reg, err := registry.Default()
	require.NoError(t, err)
	c := NewConverter(reg)
	c.now = func() time.Time { return time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC) }
	n := 0
	c.newID = func() string {
		n++
		return "gen-" + string(rune('0'+n))
	}
	return c
}

func TestReadCSV_NormalizesHeaders(t *testing.T) {
	rows, err := ReadCSV(context.Background(), strings.NewReader(recordsCSV))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, "r1", rows[0].ID.String())
	assert.Equal(t, "KE", rows[0].Country.String())
	assert.Equal(t, "official_statistical", rows[0].SourceType.String())
	assert.Equal(t, "Côte d'Ivoire", rows[1].Country.String())
	assert.Equal(t, "no", rows[1].IsProxy.String())
	assert.Equal(t, "", rows[2].IsProxy.String(), "short rows are padded")
}

func TestReadCSV_Empty(t *testing.T) {
	rows, err := ReadCSV(context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadCSV_SkipsBlankRows(t *testing.T) {
	in := "id,country_code,value\na,KE,1\n,,\nb,NG,2\n"
	rows, err := ReadCSV(context.Background(), strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[1].ID.String())
}

func TestReadCSV_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ReadCSV(ctx, strings.NewReader(recordsCSV))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context cancelled")
}

func TestReadXLSX(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"records": {
			{"id", "country", "indicator", "value", "period", "source", "source_type", "confidence"},
			{"x1", "GH", "internet_users_pct", "68.2", "2023", "ITU", "official_statistical", "0.95"},
			{"x2", "Senegal", "ai_strategy", "partial", "2024"},
		},
	})

	rows, err := ReadXLSX(context.Background(), path, "records")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "internet_users_pct", rows[0].Indicator.String())
	assert.Equal(t, "0.95", rows[0].Confidence.String())
	assert.Equal(t, "Senegal", rows[1].Country.String())
	assert.Equal(t, "", rows[1].Confidence.String())
	assert.Equal(t, 3, rows[1].Line)
}

func TestReadXLSX_SheetNotFound(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{"Sheet1": {{"id"}}})
	_, err := ReadXLSX(context.Background(), path, "records")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "records" not found`)
}

func TestReadJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"bare array", `[{"id":"j1","country_code":"KE","value":42.5,"confidence":0.9,"is_proxy":false}]`, 1},
		{"wrapped", `{"schema":"x","meta":{"n":2},"records":[{"id":"j1"},{"id":"j2","value":"yes"}]}`, 2},
		{"empty", ``, 0},
		{"empty array", `[]`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := ReadJSON(context.Background(), strings.NewReader(tt.in))
			require.NoError(t, err)
			assert.Len(t, rows, tt.want)
		})
	}
}

func TestReadJSON_BareValues(t *testing.T) {
	rows, err := ReadJSON(context.Background(), strings.NewReader(
		`[{"id":"j1","value":42.5,"confidence":0.9,"is_proxy":true,"coverage":null}]`))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "42.5", rows[0].Value.String())
	assert.Equal(t, "0.9", rows[0].Confidence.String())
	assert.Equal(t, "true", rows[0].IsProxy.String())
	assert.Equal(t, "", rows[0].Coverage.String())
	assert.Equal(t, 1, rows[0].Line)
}

func TestReadJSON_Malformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"scalar", `42`, "expected '[' or '{'"},
		{"no records", `{"schema":"x"}`, "no records array"},
		{"records not array", `{"records":{}}`, "records must be an array"},
		{"broken element", `[{"id":]`, "decode element 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadJSON(context.Background(), strings.NewReader(tt.in))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"a.csv", FormatCSV, false},
		{"A.XLSX", FormatXLSX, false},
		{"dir/a.json", FormatJSON, false},
		{"a.xls", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := DetectFormat(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadFile_CSVAndJSON(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "records.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(recordsCSV), 0644))
	jsonPath := filepath.Join(dir, "records.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"id":"j1"}]`), 0644))

	rows, err := ReadFile(context.Background(), csvPath, "")
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	rows, err = ReadFile(context.Background(), jsonPath, "")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = ReadFile(context.Background(), filepath.Join(dir, "missing.csv"), "")
	assert.Error(t, err)
}

func TestConvert_TypesRows(t *testing.T) {
	rows, err := ReadCSV(context.Background(), strings.NewReader(recordsCSV))
	require.NoError(t, err)

	res := testConverter(t).Convert(rows)
	require.Empty(t, res.Rejected)
	require.Len(t, res.Records, 3)

	ke := res.Records[0]
	assert.Equal(t, "r1", ke.ID)
	assert.Equal(t, "KE", ke.CountryCode)
	assert.Equal(t, model.NumericValue(41.5), ke.Value)
	assert.Equal(t, model.Period{Year: 2023}, ke.Period)
	assert.Equal(t, model.SourceOfficialStatistical, ke.SourceType)
	assert.InDelta(t, 0.9, ke.Confidence, 1e-9)
	assert.Equal(t, "national", ke.Coverage)
	assert.Equal(t, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), ke.CollectedAt)

	ci := res.Records[1]
	assert.Equal(t, "CI", ci.CountryCode, "names resolve to alpha-2")
	assert.Equal(t, model.PolicyValue(model.PolicyEnacted), ci.Value)
	assert.Equal(t, model.Period{Year: 2021, Quarter: 3}, ci.Period)
	assert.False(t, ci.IsProxy)

	ng := res.Records[2]
	assert.Equal(t, "gen-1", ng.ID, "missing ids are generated")
	assert.Equal(t, "NG", ng.CountryCode)
	assert.Equal(t, model.BinaryValue(true), ng.Value)
}

func TestConvert_RejectsBadRows(t *testing.T) {
	base := func() Row {
		return Row{
			Line: 7, ID: "b1", Country: "KE", Indicator: "emr_adoption_pct", Value: "40",
			Period: "2023", Source: "s", SourceType: "news", Confidence: "0.5",
		}
	}
	tests := []struct {
		name   string
		mutate func(r *Row)
		want   string
	}{
		{"missing country", func(r *Row) { r.Country = " " }, "missing country"},
		{"missing indicator", func(r *Row) { r.Indicator = "" }, "missing indicator_code"},
		{"bad numeric", func(r *Row) { r.Value = "forty" }, "parse numeric value"},
		{"bad policy", func(r *Row) { r.Indicator = "ai_strategy"; r.Value = "maybe" }, "parse policy value"},
		{"kind mismatch", func(r *Row) { r.ValueKind = "binary" }, "does not match"},
		{"unknown kind", func(r *Row) { r.ValueKind = "text" }, `unknown value_kind "text"`},
		{"bad period", func(r *Row) { r.Period = "last year" }, "parse period year"},
		{"period out of range", func(r *Row) { r.Period = "1850" }, "outside"},
		{"unknown source type", func(r *Row) { r.SourceType = "blog" }, `unknown source_type "blog"`},
		{"bad confidence", func(r *Row) { r.Confidence = "high" }, `parse confidence "high"`},
		{"bad proxy flag", func(r *Row) { r.IsProxy = "sometimes" }, "parse is_proxy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := base()
			tt.mutate(&row)
			res := testConverter(t).Convert([]Row{row})
			assert.Empty(t, res.Records)
			require.Len(t, res.Rejected, 1)
			assert.Equal(t, 7, res.Rejected[0].Line)
			assert.Contains(t, res.Rejected[0].Reason, tt.want)
			assert.Contains(t, res.Rejected[0].Error(), "ingest: line 7")
		})
	}
}

func TestConvert_PassesThroughForEngineAudit(t *testing.T) {
	rows := []Row{
		{Line: 2, ID: "u1", Country: "Atlantis", Indicator: "emr_adoption_pct", Value: "10", Period: "2023", SourceType: "news", Confidence: "0.5"},
		{Line: 3, ID: "u2", Country: "KE", Indicator: "Mystery_Index", Value: "10", Period: "2023", SourceType: "news", Confidence: "0.5"},
		{Line: 4, ID: "u3", Country: "KE", Indicator: "emr_adoption_pct", Value: "10", Period: "2023", SourceType: "news", Confidence: "1.7"},
	}
	res := testConverter(t).Convert(rows)
	require.Empty(t, res.Rejected)
	require.Len(t, res.Records, 3)
	assert.Equal(t, "ATLANTIS", res.Records[0].CountryCode)
	assert.Equal(t, "mystery_index", res.Records[1].IndicatorCode)
	assert.Equal(t, model.NumericValue(10), res.Records[1].Value)
	assert.InDelta(t, 1.7, res.Records[2].Confidence, 1e-9)
}

func TestConvert_ProxyRow(t *testing.T) {
	rows := []Row{{
		Line: 2, ID: "p1", Country: "ke", Indicator: "health_data_governance_framework", Value: "partial",
		Period: "2024", SourceType: "ecosystem_scan", Confidence: "0.4",
		IsProxy: "yes", ProxySourceIndicator: "Data_Protection_Law",
	}}
	res := testConverter(t).Convert(rows)
	require.Len(t, res.Records, 1)
	assert.True(t, res.Records[0].IsProxy)
	assert.Equal(t, "data_protection_law", res.Records[0].ProxySourceIndicator)
}
