package output

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"git.fiblab.net/general/common/v2/mongoutil"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/mp-signal-lab/entity"
	"github.com/tsinghua-fib-lab/mp-signal-lab/utils/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoTimeout = 30 * time.Second

// recordDoc 一条记录在MongoDB中的形式
type recordDoc struct {
	T       float64            `bson:"t"`
	Change  int                `bson:"change"`
	Density map[string]float64 `bson:"density"` // link ID -> 密度
	Active  string             `bson:"active"`
}

// newRecordDoc 参数links为按Density下标排列的进口道与出口道ID
func newRecordDoc(r entity.Record, links []string) recordDoc {
	d := make(map[string]float64, len(links))
	for i, m := range entity.Movements {
		d[links[i]] = r.Density[m].In
		d[links[entity.NumMovements+i]] = r.Density[m].Out
	}
	return recordDoc{T: r.Timestamp, Change: r.ChangeFlag(), Density: d, Active: r.Active.String()}
}

// runDoc 一次运行对应一个文档
type runDoc struct {
	Experiment string      `bson:"experiment"`
	Run        int         `bson:"run"`
	Seed       int64       `bson:"seed"`
	Header     []string    `bson:"header"`
	Records    []recordDoc `bson:"records"`
}

// MongoSink 将每次运行写入MongoDB集合
// 功能：运行序号为集合中已有最大序号+1，与CSV的整数命名规则一致
type MongoSink struct {
	client *mongo.Client
	col    *mongo.Collection
	header []string
	links  []string // 按Density下标排列的进口道与出口道ID
	mtx    sync.Mutex
}

// NewMongoSink 连接MongoDB并创建输出
// 参数：c-连接配置，header-数据集列名（第3到10列为link ID）
func NewMongoSink(c config.Mongo, header []string) *MongoSink {
	client := mongoutil.NewClient(c.URI)
	return &MongoSink{
		client: client,
		col:    client.Database(c.DB).Collection(c.Col),
		header: header,
		links:  header[2 : 2+2*entity.NumMovements],
	}
}

// nextRun 集合中下一个可用的运行序号
func (s *MongoSink) nextRun(ctx context.Context) (int, error) {
	var last struct {
		Run int `bson:"run"`
	}
	opts := options.FindOne().
		SetSort(bson.D{{Key: "run", Value: -1}}).
		SetProjection(bson.D{{Key: "run", Value: 1}})
	err := s.col.FindOne(ctx, bson.D{}, opts).Decode(&last)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return last.Run + 1, nil
}

func (s *MongoSink) Save(run entity.Run, records []entity.Record) (string, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()

	n, err := s.nextRun(ctx)
	if err != nil {
		return "", persistenceError("query last run in %s: %v", s.col.Name(), err)
	}
	doc := runDoc{
		Experiment: run.Experiment,
		Run:        n,
		Seed:       run.Seed,
		Header:     s.header,
		Records: lo.Map(records, func(r entity.Record, _ int) recordDoc {
			return newRecordDoc(r, s.links)
		}),
	}
	if _, err := s.col.InsertOne(ctx, doc); err != nil {
		return "", persistenceError("insert run %d into %s: %v", n, s.col.Name(), err)
	}
	return s.col.Name() + "/" + strconv.Itoa(n), nil
}

// Remove 删除Save写入的运行文档
// 参数：name-Save返回的"{集合}/{序号}"
func (s *MongoSink) Remove(name string) error {
	n, err := strconv.Atoi(strings.TrimPrefix(name, s.col.Name()+"/"))
	if err != nil {
		return fmt.Errorf("unknown dataset %s: %w", name, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()
	_, err = s.col.DeleteOne(ctx, bson.D{{Key: "run", Value: n}})
	return err
}

func (s *MongoSink) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
