// Package database connects the local backend to its object index.
//
// The index records bucket, object, size, etag, content type and timestamps
// for every object the local backend stores. It is kept in either SQLite or
// PostgreSQL.
//
// # Usage
//
//	db, err := database.Connect(ctx, database.Config{
//	    Type:  "sqlite",
//	    DSN:   "broker.db",
//	    Table: "broker_objects",
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//	index := db.GetIndex()
//
// # Subpackages
//
//   - database/postgres: PostgreSQL implementation using pgx
//   - database/sqlite: SQLite implementation using modernc.org/sqlite
package database
