package semindex

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	_ "github.com/mattn/go-sqlite3"
)

// Store — sqlite хранилище векторов индекса.
//
// Схема:
//
//	CREATE TABLE chunks (
//	    id INTEGER PRIMARY KEY AUTOINCREMENT,
//	    path TEXT NOT NULL,
//	    ord INTEGER NOT NULL,
//	    text TEXT NOT NULL,
//	    vector BLOB NOT NULL,
//	    dim INTEGER NOT NULL
//	);
//
// Векторы сериализуются в little-endian float32. Отдельная векторная
// БД здесь не нужна: коллекция маленькая, а sqlite не требует сервера.
type Store struct {
	db *sql.DB
}

// StoredChunk — чанк с вектором, как он лежит в базе.
type StoredChunk struct {
	Path   string
	Ord    int
	Text   string
	Vector []float32
}

// OpenStore открывает (или создает) файл индекса.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open index db %s: %w", path, err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
	    id INTEGER PRIMARY KEY AUTOINCREMENT,
	    path TEXT NOT NULL,
	    ord INTEGER NOT NULL,
	    text TEXT NOT NULL,
	    vector BLOB NOT NULL,
	    dim INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_path ON chunks(path);`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init index schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close закрывает базу.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert заменяет все чанки файла новыми.
//
// Старые строки удаляются в той же транзакции: повторная индексация
// файла не оставляет осиротевших векторов.
func (s *Store) Upsert(ctx context.Context, path string, chunks []Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE path = ?", path); err != nil {
		return fmt.Errorf("delete old chunks for %s: %w", path, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO chunks (path, ord, text, vector, dim) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, chunk := range chunks {
		blob := encodeVector(vectors[i])
		if _, err := stmt.ExecContext(ctx, path, chunk.Ord, chunk.Text, blob, len(vectors[i])); err != nil {
			return fmt.Errorf("insert chunk %d of %s: %w", chunk.Ord, path, err)
		}
	}

	return tx.Commit()
}

// Delete удаляет все чанки файла из индекса.
func (s *Store) Delete(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE path = ?", path); err != nil {
		return fmt.Errorf("delete chunks for %s: %w", path, err)
	}
	return nil
}

// Rename обновляет путь файла после перемещения, не трогая векторы.
func (s *Store) Rename(ctx context.Context, oldPath, newPath string) error {
	if _, err := s.db.ExecContext(ctx,
		"UPDATE chunks SET path = ? WHERE path = ?", newPath, oldPath); err != nil {
		return fmt.Errorf("rename %s to %s in index: %w", oldPath, newPath, err)
	}
	return nil
}

// All возвращает все чанки индекса для brute-force поиска.
func (s *Store) All(ctx context.Context) ([]StoredChunk, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT path, ord, text, vector, dim FROM chunks")
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var result []StoredChunk
	for rows.Next() {
		var c StoredChunk
		var blob []byte
		var dim int
		if err := rows.Scan(&c.Path, &c.Ord, &c.Text, &blob, &dim); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		vec, err := decodeVector(blob, dim)
		if err != nil {
			return nil, fmt.Errorf("decode vector for %s: %w", c.Path, err)
		}
		c.Vector = vec
		result = append(result, c)
	}
	return result, rows.Err()
}

// Paths возвращает список проиндексированных файлов.
func (s *Store) Paths(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT path FROM chunks ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("query paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// Count возвращает количество чанков в индексе.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n)
	return n, err
}

// encodeVector сериализует вектор в little-endian float32 блоб.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector восстанавливает вектор из блоба.
func decodeVector(blob []byte, dim int) ([]float32, error) {
	if len(blob) != dim*4 {
		return nil, fmt.Errorf("vector blob size %d does not match dim %d", len(blob), dim)
	}
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}
