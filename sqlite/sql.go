package sqlite

import (
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const createDebugLinesTableSQL = `
CREATE TABLE IF NOT EXISTS DebugLines (
    RunID TEXT,
    Seq INTEGER,
    Line TEXT,
    CreatedAt TIMESTAMP,
    PRIMARY KEY (RunID, Seq)
);
`

const createDebugLinesIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_debug_run ON DebugLines (RunID);
`

const (
	QueueSize       = 1024 // 待写入行的缓冲，满了直接丢弃
	batchSize       = 128
	DefaultMaxRows  = 5000 // 每次运行最多保留的行数
	insertLineSQL   = "INSERT INTO DebugLines (RunID, Seq, Line, CreatedAt) VALUES (?, ?, ?, ?)"
	pruneRunLineSQL = "DELETE FROM DebugLines WHERE RunID = ? AND Seq <= ?"
)

var (
	ErrJournalFull   = errors.New("debug journal queue full, line dropped")
	ErrJournalClosed = errors.New("debug journal closed")
)

// Entry 一条调试输出记录
type Entry struct {
	RunID     string    `json:"run_id"`
	Seq       int64     `json:"seq"`
	Line      string    `json:"line"`
	CreatedAt time.Time `json:"created_at"`
}

type item struct {
	Entry
	flushed chan struct{} // 非空时只是一个 Flush 标记
}

// Journal 把串口调试行记到 sqlite，每次启动一个 RunID。
// WriteLine 只入队，写库由后台 goroutine 批量完成。
type Journal struct {
	db      *sql.DB
	runID   string
	maxRows int64

	mu      sync.Mutex
	seq     int64
	closed  bool
	queue   chan item
	done    chan struct{}
	dropped uint64
	flushes sync.WaitGroup
}

func executeSQL(db *sql.DB, sqlStatement string) error {
	if _, err := db.Exec(sqlStatement); err != nil {
		return errors.Wrapf(err, "executing SQL statement: %s", sqlStatement)
	}
	return nil
}

// InitializeDatabase 建表
func InitializeDatabase(db *sql.DB) error {
	if err := executeSQL(db, createDebugLinesTableSQL); err != nil {
		return err
	}
	return executeSQL(db, createDebugLinesIndexSQL)
}

// OpenJournal 打开（或创建）数据库文件，maxRows <= 0 时使用 DefaultMaxRows
func OpenJournal(path string, maxRows int) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open journal")
	}
	// :memory: 每个连接是独立的库
	db.SetMaxOpenConns(1)
	if err := InitializeDatabase(db); err != nil {
		db.Close()
		return nil, err
	}
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	j := &Journal{
		db:      db,
		runID:   uuid.NewString(),
		maxRows: int64(maxRows),
		queue:   make(chan item, QueueSize),
		done:    make(chan struct{}),
	}
	go j.writer()
	return j, nil
}

func (j *Journal) RunID() string {
	return j.runID
}

// WriteLine implements the game's debug sink. It never blocks: when the
// queue is full the line is dropped and ErrJournalFull returned.
func (j *Journal) WriteLine(line string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrJournalClosed
	}
	e := Entry{RunID: j.runID, Seq: j.seq + 1, Line: line, CreatedAt: time.Now()}
	select {
	case j.queue <- item{Entry: e}:
		j.seq++
		return nil
	default:
		j.dropped++
		return ErrJournalFull
	}
}

// Dropped 返回因队列满而丢弃的行数
func (j *Journal) Dropped() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.dropped
}

// Flush 等待此前入队的行全部写入
func (j *Journal) Flush() error {
	flushed := make(chan struct{})
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return ErrJournalClosed
	}
	j.flushes.Add(1)
	j.mu.Unlock()

	// 标记排在此前所有行之后，不持锁，WriteLine 仍然不会阻塞
	j.queue <- item{flushed: flushed}
	j.flushes.Done()
	<-flushed
	return nil
}

func (j *Journal) writer() {
	defer close(j.done)
	batch := make([]Entry, 0, batchSize)
	var markers []chan struct{}

	for it := range j.queue {
		batch, markers = collect(batch[:0], markers[:0], it)
		// 把已经排队的行一起拿走，合并成一个事务
	drain:
		for len(batch) < batchSize {
			select {
			case next, ok := <-j.queue:
				if !ok {
					break drain
				}
				batch, markers = collect(batch, markers, next)
			default:
				break drain
			}
		}
		if len(batch) > 0 {
			if err := j.writeBatch(batch); err != nil {
				log.WithField("component", "journal").Debugf("write batch: %v", err)
			}
		}
		for _, m := range markers {
			close(m)
		}
	}
}

func collect(batch []Entry, markers []chan struct{}, it item) ([]Entry, []chan struct{}) {
	if it.flushed != nil {
		return batch, append(markers, it.flushed)
	}
	return append(batch, it.Entry), markers
}

func (j *Journal) writeBatch(batch []Entry) error {
	tx, err := j.db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	stmt, err := tx.Prepare(insertLineSQL)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "prepare insert")
	}
	defer stmt.Close()
	for _, e := range batch {
		if _, err := stmt.Exec(e.RunID, e.Seq, e.Line, e.CreatedAt); err != nil {
			tx.Rollback()
			return errors.Wrap(err, "insert debug line")
		}
	}
	// 每次运行只保留最近 maxRows 行
	last := batch[len(batch)-1].Seq
	if last > j.maxRows {
		if _, err := tx.Exec(pruneRunLineSQL, j.runID, last-j.maxRows); err != nil {
			tx.Rollback()
			return errors.Wrap(err, "prune debug lines")
		}
	}
	return errors.Wrap(tx.Commit(), "commit")
}

// Recent 返回本次运行最近的 limit 行，按写入顺序
func (j *Journal) Recent(limit int) ([]Entry, error) {
	rows, err := j.db.Query(
		"SELECT RunID, Seq, Line, CreatedAt FROM DebugLines WHERE RunID = ? ORDER BY Seq DESC LIMIT ?",
		j.runID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query debug lines")
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.RunID, &e.Seq, &e.Line, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan debug line")
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate debug lines")
	}

	// 倒序查询，翻转回写入顺序
	for i, k := 0, len(entries)-1; i < k; i, k = i+1, k-1 {
		entries[i], entries[k] = entries[k], entries[i]
	}
	return entries, nil
}

// Close 写完队列里剩余的行后关闭数据库
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	j.mu.Unlock()
	j.flushes.Wait()
	close(j.queue)
	<-j.done
	return j.db.Close()
}
