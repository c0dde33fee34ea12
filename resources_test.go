package joinery

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

type Counter struct {
	Value int
}

type Config struct {
	Name string
}

func TestResources_InsertRemove(t *testing.T) {
	rs := NewResources()

	require.False(t, HasResource[Counter](rs))

	_, replaced := InsertResource(rs, Counter{Value: 1})
	require.False(t, replaced)
	require.True(t, HasResource[Counter](rs))

	previous, replaced := InsertResource(rs, Counter{Value: 2})
	require.True(t, replaced)
	require.Equal(t, Counter{Value: 1}, previous)

	value, ok := RemoveResource[Counter](rs)
	require.True(t, ok)
	require.Equal(t, Counter{Value: 2}, value)
	require.False(t, HasResource[Counter](rs))

	_, ok = RemoveResource[Counter](rs)
	require.False(t, ok)
}

func TestResources_ReadWrite(t *testing.T) {
	rs := NewResources()
	InsertResource(rs, Counter{Value: 10})

	write := WriteResource[Counter](rs)
	write.Value().Value = 11
	write.Release()

	// two simultaneous readers are fine
	first := ReadResource[Counter](rs)
	second := ReadResource[Counter](rs)

	require.Equal(t, 11, first.Value().Value)
	require.Equal(t, 11, second.Value().Value)

	first.Release()
	second.Release()
}

func TestResources_WriteWhileRead(t *testing.T) {
	rs := NewResources()
	InsertResource(rs, Counter{})

	read := ReadResource[Counter](rs)
	defer read.Release()

	require.PanicsWithValue(t,
		BorrowViolation{Type: reflect.TypeFor[Counter](), Op: "write requested while borrowed"},
		func() { WriteResource[Counter](rs) })
}

func TestResources_ReadWhileWrite(t *testing.T) {
	rs := NewResources()
	InsertResource(rs, Counter{})

	write := WriteResource[Counter](rs)
	defer write.Release()

	require.PanicsWithValue(t,
		BorrowViolation{Type: reflect.TypeFor[Counter](), Op: "read requested while exclusively held"},
		func() { ReadResource[Counter](rs) })
}

func TestResources_WriteWhileWrite(t *testing.T) {
	rs := NewResources()
	InsertResource(rs, Counter{})

	write := WriteResource[Counter](rs)
	defer write.Release()

	require.Panics(t, func() { WriteResource[Counter](rs) })
}

func TestResources_ReleaseReopens(t *testing.T) {
	rs := NewResources()
	InsertResource(rs, Counter{})

	read := ReadResource[Counter](rs)
	read.Release()

	write := WriteResource[Counter](rs)
	write.Release()

	write = WriteResource[Counter](rs)
	write.Release()
}

func TestResources_RemoveWhileBorrowed(t *testing.T) {
	rs := NewResources()
	InsertResource(rs, Counter{})

	read := ReadResource[Counter](rs)
	defer read.Release()

	require.Panics(t, func() { RemoveResource[Counter](rs) })
	require.Panics(t, func() { InsertResource(rs, Counter{Value: 5}) })
}

func TestResources_Missing(t *testing.T) {
	rs := NewResources()

	require.Panics(t, func() { ReadResource[Counter](rs) })
	require.Panics(t, func() { WriteResource[Counter](rs) })
}

func TestResources_ResourceOrInsert(t *testing.T) {
	rs := NewResources()

	created := ResourceOrInsert(rs, func() Config { return Config{Name: "default"} })
	require.Equal(t, "default", created.Name)

	// factory must not run again
	again := ResourceOrInsert(rs, func() Config {
		t.Fatal("factory called for existing resource")
		return Config{}
	})

	require.Same(t, created, again)
}

func TestResources_Acquire(t *testing.T) {
	rs := NewResources()
	InsertResource(rs, Counter{Value: 1})
	InsertResource(rs, Config{Name: "a"})

	guards := rs.Acquire(W[Counter](), R[Config]())

	Borrowed[Counter](guards).Value = 2
	require.Equal(t, "a", Borrowed[Config](guards).Name)

	// Counter is exclusively held
	require.Panics(t, func() { ReadResource[Counter](rs) })

	// Config is only read locked
	read := ReadResource[Config](rs)
	read.Release()

	guards.Release()

	write := WriteResource[Counter](rs)
	require.Equal(t, 2, write.Value().Value)
	write.Release()
}

func TestResources_BorrowedMissing(t *testing.T) {
	rs := NewResources()
	InsertResource(rs, Counter{})

	guards := rs.Acquire(R[Counter]())
	defer guards.Release()

	require.Panics(t, func() { Borrowed[Config](guards) })
}
