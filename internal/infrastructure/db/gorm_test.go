package db

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func mockDialector(t *testing.T, pingErr error) (sqlmock.Sqlmock, gorm.Dialector) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	mock.ExpectPing().WillReturnError(pingErr)
	return mock, mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true})
}

func TestOpenGormWithDialector(t *testing.T) {
	tests := []struct {
		name    string
		pingErr error
		log     *zap.Logger
		wantErr bool
	}{
		{"default logger", nil, nil, false},
		{"zap logger", nil, zap.NewNop(), false},
		{"ping fails", errors.New("no ping"), nil, true},
	}
	for _, tc := range tests {
		mock, dial := mockDialector(t, tc.pingErr)
		gdb, err := OpenGormWithDialector(dial, DefaultPool(), tc.log)
		if tc.wantErr != (err != nil) {
			t.Fatalf("%s: err = %v, wantErr %v", tc.name, err, tc.wantErr)
		}
		if !tc.wantErr {
			sqlDB, _ := gdb.DB()
			if got := sqlDB.Stats().MaxOpenConnections; got != DefaultPool().MaxOpen {
				t.Fatalf("%s: max open = %d", tc.name, got)
			}
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("%s: unmet expectations: %v", tc.name, err)
		}
	}
}
