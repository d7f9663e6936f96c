package output_test

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/mp-signal-lab/entity"
	"github.com/tsinghua-fib-lab/mp-signal-lab/entity/junction"
	"github.com/tsinghua-fib-lab/mp-signal-lab/utils/config"
	"github.com/tsinghua-fib-lab/mp-signal-lab/utils/output"
)

func header(t *testing.T) []string {
	topo, err := junction.NewTopology(config.DefaultTopology())
	require.NoError(t, err)
	return topo.Header()
}

func records() []entity.Record {
	r1 := entity.Record{Timestamp: 201, Active: entity.North}
	r1.Density[entity.North] = entity.LinkDensity{In: 0.5, Out: 0.25}
	r2 := entity.Record{Timestamp: 204, Change: true, Active: entity.West}
	r2.Density[entity.West] = entity.LinkDensity{In: 0.125}
	return []entity.Record{r1, r2}
}

func readCSV(t *testing.T, path string) [][]string {
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestRow(t *testing.T) {
	assert.Equal(t,
		[]string{"204", "1", "0", "0", "0", "0.125", "0", "0", "0", "0", "0", "0", "0", "1"},
		output.Row(records()[1]),
	)
	assert.Len(t, output.Row(entity.Record{}), len(header(t)))
}

func TestNextIndex(t *testing.T) {
	dir := t.TempDir()
	n, err := output.NextIndex(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = output.NextIndex(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	for _, name := range []string{"3.csv", "7.csv", "notes.txt", "10x.csv"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	n, err = output.NextIndex(dir)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
}

func TestCSVSinkSequential(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	s := output.NewCSVSink(dir, config.NamingSequential, header(t))

	name, err := s.Save(entity.Run{Experiment: "e", Seed: 42}, records())
	require.NoError(t, err)
	assert.Equal(t, "1", name)
	name, err = s.Save(entity.Run{Experiment: "e", Seed: 43}, records())
	require.NoError(t, err)
	assert.Equal(t, "2", name)
	assert.NoError(t, s.Close())

	rows := readCSV(t, filepath.Join(dir, "1.csv"))
	require.Len(t, rows, 3)
	assert.Equal(t, header(t), rows[0])
	assert.Equal(t, []string{"201", "0", "0.5", "0", "0", "0", "0.25", "0", "0", "0", "1", "0", "0", "0"}, rows[1])
	assert.Equal(t, output.Row(records()[1]), rows[2])
}

func TestCSVSinkSeed(t *testing.T) {
	dir := t.TempDir()
	s := output.NewCSVSink(dir, config.NamingSeed, header(t))
	name, err := s.Save(entity.Run{Seed: 17}, nil)
	require.NoError(t, err)
	assert.Equal(t, "17", name)
	rows := readCSV(t, filepath.Join(dir, "17.csv"))
	assert.Len(t, rows, 1)

	// 不覆盖已有数据集
	_, err = s.Save(entity.Run{Seed: 17}, records())
	assert.ErrorIs(t, err, entity.ErrPersistenceFailure)
}

func TestCSVSinkFailure(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	s := output.NewCSVSink(file, config.NamingSequential, header(t))
	_, err := s.Save(entity.Run{Seed: 1}, records())
	assert.ErrorIs(t, err, entity.ErrPersistenceFailure)
}

type failingSink struct {
	saves  int
	closed bool
}

func (f *failingSink) Save(entity.Run, []entity.Record) (string, error) {
	f.saves++
	return "", entity.ErrPersistenceFailure
}

func (f *failingSink) Close() error {
	f.closed = true
	return nil
}

func TestMulti(t *testing.T) {
	dir := t.TempDir()
	csvSink := output.NewCSVSink(dir, config.NamingSequential, header(t))
	assert.Same(t, csvSink, output.Multi(csvSink))

	other := output.NewCSVSink(t.TempDir(), config.NamingSeed, header(t))
	name, err := output.Multi(csvSink, other).Save(entity.Run{Seed: 5}, records())
	require.NoError(t, err)
	assert.Equal(t, "1", name)
	require.NoError(t, os.Remove(filepath.Join(dir, "1.csv")))

	// 后续sink失败时撤回已写出的CSV，序号不被占用
	failing := &failingSink{}
	m := output.Multi(csvSink, failing)
	name, err = m.Save(entity.Run{Seed: 1}, records())
	assert.Empty(t, name)
	assert.ErrorIs(t, err, entity.ErrPersistenceFailure)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// 第一个sink失败时不再写后续sink
	name, err = output.Multi(failing, csvSink).Save(entity.Run{Seed: 2}, records())
	assert.Empty(t, name)
	assert.ErrorIs(t, err, entity.ErrPersistenceFailure)
	assert.Equal(t, 2, failing.saves)
	n, err := output.NextIndex(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.NoError(t, m.Close())
	assert.True(t, failing.closed)
}
