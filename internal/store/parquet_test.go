package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/KaramelBytes/crimeloom/internal/table"
)

func TestRoundTripKeepsKindsAndNulls(t *testing.T) {
	code := table.NewColumn("codigo_municipio", table.Int64, 3)
	code.AppendInt(table.Int(68001))
	code.AppendNull()
	code.AppendInt(table.Int(68077))
	area := table.NewColumn("area", table.Float64, 3)
	area.AppendFloat(table.Float(100))
	area.AppendFloat(table.Float(2.5))
	area.AppendNull()
	name := table.StringColumn("municipio", []string{"BUCARAMANGA", "", "BARBOSA"})
	geom := table.NewColumn("geometry", table.Bytes, 3)
	geom.AppendBytes([]byte{1, 2, 3})
	geom.AppendBytes(nil)
	geom.AppendBytes([]byte{4})
	in := table.MustNew(code, area, name, geom)

	path := filepath.Join(t.TempDir(), "gold", "t.parquet")
	if err := Write(path, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file should be gone, stat err=%v", err)
	}
	out, err := Read(context.Background(), path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if diff := cmp.Diff(in.Names(), out.Names()); diff != "" {
		t.Fatalf("names (-want +got):\n%s", diff)
	}
	for _, n := range in.Names() {
		want, _ := in.Column(n)
		got, _ := out.Column(n)
		if got.Kind != want.Kind {
			t.Errorf("%s kind = %s, want %s", n, got.Kind, want.Kind)
		}
		for i := 0; i < want.Len(); i++ {
			if got.IsNull(i) != want.IsNull(i) || got.Text(i) != want.Text(i) {
				t.Errorf("%s[%d] = %q (null=%v), want %q (null=%v)", n, i, got.Text(i), got.IsNull(i), want.Text(i), want.IsNull(i))
			}
		}
	}
}

func TestReadMissingFile(t *testing.T) {
	if _, err := Read(context.Background(), filepath.Join(t.TempDir(), "nope.parquet")); !os.IsNotExist(err) {
		t.Fatalf("want not-exist error, got %v", err)
	}
}

func TestEmptyTable(t *testing.T) {
	in := table.MustNew(table.NewColumn("anio", table.Int64, 0))
	path := filepath.Join(t.TempDir(), "empty.parquet")
	if err := Write(path, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := Read(context.Background(), path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.NumRows() != 0 || !out.Has("anio") {
		t.Fatalf("got rows=%d names=%v", out.NumRows(), out.Names())
	}
}
