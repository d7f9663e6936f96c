package output

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/tsinghua-fib-lab/mp-signal-lab/entity"
	"github.com/tsinghua-fib-lab/mp-signal-lab/utils/config"
)

const csvExt = ".csv"

// CSVSink 每次运行写一个CSV文件
// 功能：文件名为整数序号（目录中最大的整数文件名+1）或种子
// 说明：命名与创建在同一把锁内完成，并行运行时不会重名
type CSVSink struct {
	dir    string
	naming string
	header []string
	mtx    sync.Mutex
}

// NewCSVSink 创建CSV输出
// 参数：dir-输出目录，naming-命名方式，header-列名
func NewCSVSink(dir, naming string, header []string) *CSVSink {
	return &CSVSink{dir: dir, naming: naming, header: header}
}

// NextIndex 输出目录中下一个可用的整数文件名
// 说明：空目录或不存在的目录返回1；非整数文件名被忽略
func NextIndex(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	last := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if i, err := strconv.Atoi(name); err == nil && i > last {
			last = i
		}
	}
	return last + 1, nil
}

// Save 写出一次运行的全部记录
// 返回：数据集名（不含扩展名），失败时返回ErrPersistenceFailure且不留下半个文件
func (s *CSVSink) Save(run entity.Run, records []entity.Record) (string, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", persistenceError("create output dir %s: %v", s.dir, err)
	}
	var name string
	if s.naming == config.NamingSeed {
		name = strconv.FormatInt(run.Seed, 10)
	} else {
		i, err := NextIndex(s.dir)
		if err != nil {
			return "", persistenceError("list output dir %s: %v", s.dir, err)
		}
		name = strconv.Itoa(i)
	}
	path := filepath.Join(s.dir, name+csvExt)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", persistenceError("create %s: %v", path, err)
	}
	if err := s.write(f, records); err != nil {
		f.Close()
		os.Remove(path)
		return "", persistenceError("write %s: %v", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", persistenceError("close %s: %v", path, err)
	}
	log.Debugf("saved %d records to %s", len(records), path)
	return name, nil
}

// Remove 删除Save写出的数据集
func (s *CSVSink) Remove(name string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return os.Remove(filepath.Join(s.dir, name+csvExt))
}

func (s *CSVSink) write(f *os.File, records []entity.Record) error {
	w := csv.NewWriter(f)
	if err := w.Write(s.header); err != nil {
		return err
	}
	for _, r := range records {
		if err := w.Write(Row(r)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (s *CSVSink) Close() error {
	return nil
}
