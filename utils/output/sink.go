// 数据集持久化：CSV目录、MongoDB集合与Kafka主题
package output

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/tsinghua-fib-lab/mp-signal-lab/entity"
)

// Row 将记录转换为一行
// 列顺序与junction.Topology.Header一致：timestamp, change, 4条进口道, 4条出口道, 4个独热位
func Row(r entity.Record) []string {
	row := make([]string, 0, 2+3*entity.NumMovements)
	row = append(row, strconv.FormatFloat(r.Timestamp, 'f', -1, 64), strconv.Itoa(r.ChangeFlag()))
	for _, d := range r.Density {
		row = append(row, strconv.FormatFloat(d.In, 'f', -1, 64))
	}
	for _, d := range r.Density {
		row = append(row, strconv.FormatFloat(d.Out, 'f', -1, 64))
	}
	for _, v := range r.OneHot() {
		row = append(row, strconv.Itoa(v))
	}
	return row
}

// persistenceError 统一包装为ErrPersistenceFailure
func persistenceError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", entity.ErrPersistenceFailure, fmt.Sprintf(format, args...))
}

// remover 可以撤回已保存数据集的sink
type remover interface {
	Remove(name string) error
}

// multi 依次写入多个sink
type multi []entity.ISink

// Multi 组合多个sink，数据集名取第一个sink的返回值
// 说明：任一sink失败时不再写后续sink，并撤回已写入的数据集（支持撤回的sink），
// 不可撤回的sink（如Kafka）应放在最后
func Multi(sinks ...entity.ISink) entity.ISink {
	if len(sinks) == 1 {
		return sinks[0]
	}
	return multi(sinks)
}

func (m multi) Save(run entity.Run, records []entity.Record) (string, error) {
	names := make([]string, 0, len(m))
	for i, s := range m {
		n, err := s.Save(run, records)
		if err != nil {
			return "", errors.Join(err, m.rollback(names))
		}
		names = append(names, n)
		if i == 0 {
			log.Debugf("run %s/%d saved as %s", run.Experiment, run.Seed, n)
		}
	}
	if len(names) == 0 {
		return "", nil
	}
	return names[0], nil
}

// rollback 按保存的逆序撤回前len(names)个sink写入的数据集
func (m multi) rollback(names []string) error {
	var errs []error
	for i := len(names) - 1; i >= 0; i-- {
		r, ok := m[i].(remover)
		if !ok {
			continue
		}
		if err := r.Remove(names[i]); err != nil {
			errs = append(errs, persistenceError("roll back %s: %v", names[i], err))
		}
	}
	return errors.Join(errs...)
}

func (m multi) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
