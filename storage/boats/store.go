// Package boats 基于 SQLite 的船只存储
//
// Store 同时实现列表查询、批量更新和坐标读取三个外部接口。
package boats

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"boatsync/errors"
	"boatsync/logging"
	core "boatsync/storage/database"
	"boatsync/storage/database/basic"
	"boatsync/widget"
)

// 记录字段名
const (
	FieldName        = "Name"
	FieldBoatType    = "BoatType__c"
	FieldLength      = "Length__c"
	FieldPrice       = "Price__c"
	FieldDescription = "Description__c"
	FieldLatitude    = "Geolocation__Latitude__s"
	FieldLongitude   = "Geolocation__Longitude__s"
)

var (
	_ widget.QueryService = (*Store)(nil)
	_ widget.BatchUpdater = (*Store)(nil)
	_ widget.RecordLookup = (*Store)(nil)
)

// Store 船只存储
type Store struct {
	db     core.IDatabase
	logger logging.Logger
}

// New 使用已打开的数据库创建存储
func New(db core.IDatabase, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Store{db: db, logger: logger.WithFields(logging.String("component", "storage.boats"))}
}

// Open 打开 SQLite 数据库并建表
//
// path 为空时使用内存库。SQLite 只使用单连接，内存库在连接间不共享。
func Open(ctx context.Context, path string, logger logging.Logger) (*Store, *basic.DB, error) {
	if path == "" {
		path = "file::memory:"
	}
	db, err := basic.New(core.DBConfig{Driver: "sqlite", Database: path, MaxOpenConns: 1})
	if err != nil {
		return nil, nil, errors.WrapDatabaseError(ctx, err, "open sqlite")
	}
	if err := db.ExecScript(ctx, createBoatTypes, createBoats, createBoatsTypeIndex); err != nil {
		_ = db.Close()
		return nil, nil, errors.WrapDatabaseError(ctx, err, "migrate")
	}
	return New(db, logger), db, nil
}

// Seed 写入演示数据，已存在的记录不覆盖
func (s *Store) Seed(ctx context.Context) error {
	return core.WithTx(ctx, s.db, func(tx core.ITransaction) error {
		for _, t := range seedTypes {
			if _, err := tx.Exec(ctx, `INSERT OR IGNORE INTO boat_types (id, name) VALUES (?, ?)`, t[0], t[1]); err != nil {
				return errors.WrapDatabaseError(ctx, err, "seed boat types")
			}
		}
		for _, b := range seedBoats {
			_, err := tx.Exec(ctx, `INSERT OR IGNORE INTO boats
				(id, name, boat_type_id, length, price, description, latitude, longitude, restricted)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				b.id, b.name, b.boatType, b.length, b.price, b.description, b.lat, b.lng, b.restricted)
			if err != nil {
				return errors.WrapDatabaseError(ctx, err, "seed boats")
			}
		}
		return nil
	})
}

// ListBoats 按类型返回船只，boatTypeID 为空时返回全部
func (s *Store) ListBoats(ctx context.Context, boatTypeID string) ([]widget.Record, error) {
	qb := basic.NewSelect().
		Select("id", "name", "boat_type_id", "length", "price", "description", "latitude", "longitude").
		From("boats").
		OrderBy("name", false)
	if boatTypeID != "" {
		qb.Where("boat_type_id = ?", boatTypeID)
	}
	query, args := qb.Build()

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.WrapDatabaseError(ctx, err, "list boats")
	}
	defer rows.Close()

	records := []widget.Record{}
	for rows.Next() {
		var (
			id, name, boatType, description string
			length, price                   float64
			lat, lng                        sql.NullFloat64
		)
		if err := rows.Scan(&id, &name, &boatType, &length, &price, &description, &lat, &lng); err != nil {
			return nil, errors.WrapDatabaseError(ctx, err, "scan boat")
		}
		fields := map[string]any{
			FieldName:        name,
			FieldBoatType:    boatType,
			FieldLength:      length,
			FieldPrice:       price,
			FieldDescription: description,
		}
		if lat.Valid && lng.Valid {
			fields[FieldLatitude] = lat.Float64
			fields[FieldLongitude] = lng.Float64
		}
		records = append(records, widget.Record{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapDatabaseError(ctx, err, "list boats")
	}
	return records, nil
}

// UpdateBoats 在单个事务中应用全部修改，任一失败则整体回滚
func (s *Store) UpdateBoats(ctx context.Context, edits []widget.FieldEdit) error {
	if len(edits) == 0 {
		return nil
	}
	err := core.WithTx(ctx, s.db, func(tx core.ITransaction) error {
		for _, edit := range edits {
			column, ok := editableColumns[edit.Field]
			if !ok {
				return errors.NewError(errors.ErrCodeValidation,
					fmt.Sprintf("field %s is not editable", edit.Field)).
					WithContext("record_id", edit.RecordID)
			}
			res, err := tx.Exec(ctx, fmt.Sprintf("UPDATE boats SET %s = ? WHERE id = ?", column), edit.Value, edit.RecordID)
			if err != nil {
				return errors.WrapDatabaseError(ctx, err, "update boat")
			}
			n, err := res.RowsAffected()
			if err != nil {
				return errors.WrapDatabaseError(ctx, err, "update boat")
			}
			if n == 0 {
				return errors.NewError(errors.ErrCodeNotFound, fmt.Sprintf("boat %s not found", edit.RecordID))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "boats updated", logging.Int("edits", len(edits)), logging.String("records", recordIDs(edits)))
	return nil
}

// Location 读取船只坐标
//
// 记录不存在或未设置坐标时返回 NOT_FOUND，受限记录返回 FORBIDDEN。
func (s *Store) Location(ctx context.Context, id string) (widget.Location, error) {
	var (
		lat, lng   sql.NullFloat64
		restricted bool
	)
	row := s.db.QueryRow(ctx, `SELECT latitude, longitude, restricted FROM boats WHERE id = ?`, id)
	if err := row.Scan(&lat, &lng, &restricted); err != nil {
		return widget.Location{}, errors.WrapDatabaseError(ctx, err, "load boat location")
	}
	if restricted {
		return widget.Location{}, errors.NewError(errors.ErrCodeForbidden, fmt.Sprintf("boat %s is restricted", id))
	}
	if !lat.Valid || !lng.Valid {
		return widget.Location{}, errors.NewError(errors.ErrCodeNotFound, fmt.Sprintf("boat %s has no location", id))
	}
	return widget.Location{Latitude: lat.Float64, Longitude: lng.Float64}, nil
}

func recordIDs(edits []widget.FieldEdit) string {
	seen := make(map[string]bool, len(edits))
	ids := make([]string, 0, len(edits))
	for _, e := range edits {
		if !seen[e.RecordID] {
			seen[e.RecordID] = true
			ids = append(ids, e.RecordID)
		}
	}
	return strings.Join(ids, ",")
}
