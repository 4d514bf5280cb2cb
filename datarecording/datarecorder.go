// Package datarecording stores simulation records in a SQLite database.
package datarecording

import (
	"database/sql"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"
	"sync"

	// Registers the sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// DataRecorder buffers flat struct entries and writes them to tables.
type DataRecorder interface {
	// CreateTable creates a table with one column per field of sample.
	CreateTable(name string, sample any)

	// InsertData buffers an entry for an existing table.
	InsertData(name string, entry any)

	// ListTables returns the table names, sorted.
	ListTables() []string

	// Flush writes the buffered entries.
	Flush()

	// Close flushes and closes the database.
	Close() error
}

const defaultBatchSize = 100000

// New creates a DataRecorder writing to path.sqlite3, or to a randomly named
// file if path is empty. An existing file is never overwritten. The buffer is
// also flushed when the process exits through atexit.
func New(path string) DataRecorder {
	if path == "" {
		path = "tlmbus_recording_" + xid.New().String()
	}

	file := path + ".sqlite3"
	if _, err := os.Stat(file); err == nil {
		panic(fmt.Errorf("file %s already exists", file))
	}

	db, err := sql.Open("sqlite3", file)
	if err != nil {
		panic(err)
	}

	fmt.Fprintf(os.Stderr, "Recording to %s\n", file)

	return NewWithDB(db)
}

// NewWithDB creates a DataRecorder on an open database.
func NewWithDB(db *sql.DB) DataRecorder {
	r := &sqliteRecorder{
		db:        db,
		batchSize: defaultBatchSize,
		tables:    make(map[string]*table),
	}

	atexit.Register(r.Flush)

	return r
}

type table struct {
	typ     reflect.Type
	insert  string
	pending []reflect.Value
}

type sqliteRecorder struct {
	lock      sync.Mutex
	db        *sql.DB
	tables    map[string]*table
	batchSize int
	buffered  int
	closed    bool
}

var columnTypes = map[reflect.Kind]string{
	reflect.Bool:    "INTEGER",
	reflect.Int:     "INTEGER",
	reflect.Int8:    "INTEGER",
	reflect.Int16:   "INTEGER",
	reflect.Int32:   "INTEGER",
	reflect.Int64:   "INTEGER",
	reflect.Uint:    "INTEGER",
	reflect.Uint8:   "INTEGER",
	reflect.Uint16:  "INTEGER",
	reflect.Uint32:  "INTEGER",
	reflect.Uint64:  "INTEGER",
	reflect.Float32: "REAL",
	reflect.Float64: "REAL",
	reflect.String:  "TEXT",
}

// columns returns "Name TYPE" definitions for the fields of a flat struct.
func columns(typ reflect.Type) ([]string, error) {
	if typ == nil || typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%v is not a struct", typ)
	}

	defs := make([]string, typ.NumField())
	for i := range defs {
		f := typ.Field(i)

		sqlType, ok := columnTypes[f.Type.Kind()]
		if !ok || !f.IsExported() {
			return nil, fmt.Errorf("field %s cannot be recorded", f.Name)
		}

		defs[i] = f.Name + " " + sqlType
	}

	return defs, nil
}

func (r *sqliteRecorder) CreateTable(name string, sample any) {
	typ := reflect.TypeOf(sample)

	defs, err := columns(typ)
	if err != nil {
		panic(err)
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	_, err = r.db.Exec(fmt.Sprintf("CREATE TABLE %s (%s)",
		name, strings.Join(defs, ", ")))
	if err != nil {
		panic(fmt.Errorf("creating table %s: %w", name, err))
	}

	marks := strings.TrimSuffix(strings.Repeat("?, ", len(defs)), ", ")
	r.tables[name] = &table{
		typ:    typ,
		insert: fmt.Sprintf("INSERT INTO %s VALUES (%s)", name, marks),
	}
}

func (r *sqliteRecorder) InsertData(name string, entry any) {
	r.lock.Lock()

	t, ok := r.tables[name]
	if !ok {
		r.lock.Unlock()
		panic(fmt.Sprintf("table %s does not exist", name))
	}

	v := reflect.ValueOf(entry)
	if v.Type() != t.typ {
		r.lock.Unlock()
		panic(fmt.Sprintf("%T does not fit table %s", entry, name))
	}

	t.pending = append(t.pending, v)
	r.buffered++
	full := r.buffered >= r.batchSize

	r.lock.Unlock()

	if full {
		r.Flush()
	}
}

func (r *sqliteRecorder) ListTables() []string {
	r.lock.Lock()
	defer r.lock.Unlock()

	names := make([]string, 0, len(r.tables))
	for n := range r.tables {
		names = append(names, n)
	}
	sort.Strings(names)

	return names
}

func (r *sqliteRecorder) Flush() {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.buffered == 0 || r.closed {
		return
	}

	if err := r.writePending(); err != nil {
		panic(fmt.Errorf("flushing records: %w", err))
	}

	r.buffered = 0
}

func (r *sqliteRecorder) writePending() error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}

	for _, t := range r.tables {
		if err := insertAll(tx, t); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

func insertAll(tx *sql.Tx, t *table) error {
	if len(t.pending) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(t.insert)
	if err != nil {
		return err
	}
	defer stmt.Close()

	args := make([]any, t.typ.NumField())
	for _, v := range t.pending {
		for i := range args {
			args[i] = v.Field(i).Interface()
		}

		if _, err := stmt.Exec(args...); err != nil {
			return err
		}
	}

	t.pending = nil

	return nil
}

func (r *sqliteRecorder) Close() error {
	r.Flush()

	r.lock.Lock()
	defer r.lock.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	return r.db.Close()
}
