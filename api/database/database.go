package database

import (
	"sync"
	"time"

	"github.com/spf13/viper"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var databaseConn *gorm.DB
var locker sync.Mutex

// Get returns the shared database handle, opening it on first use.
func Get() (*gorm.DB, error) {
	var err error

	locker.Lock()
	defer locker.Unlock()
	if databaseConn == nil {
		databaseConn, err = load()
	}

	return databaseConn, err
}

// Set replaces the shared handle. Tests use this to point the modules at
// an in-memory database.
func Set(db *gorm.DB) {
	locker.Lock()
	defer locker.Unlock()
	databaseConn = db
}

func Close() {
	locker.Lock()
	defer locker.Unlock()
	if databaseConn == nil {
		return
	}
	if sqlDb, err := databaseConn.DB(); err == nil {
		_ = sqlDb.Close()
	}
	databaseConn = nil
}

func load() (db *gorm.DB, err error) {
	connString := viper.GetString("database")
	if connString == "" {
		connString = "eclipsa:eclipsa@/eclipsa?charset=utf8mb4&parseTime=True"
	}

	db, err = gorm.Open(mysql.Open(connString), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if db != nil {
		sqlDb, _ := db.DB()
		sqlDb.SetConnMaxLifetime(time.Second * 10)
		sqlDb.SetMaxIdleConns(0)
		sqlDb.SetMaxOpenConns(10)
	}
	return
}
