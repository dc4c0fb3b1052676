package access

import (
	"context"
	"testing"
	"time"

	"designer/internal/datadef"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func skipIntegration(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test: needs docker")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
}

const carsDDL = `CREATE TABLE cars (
	id INT PRIMARY KEY,
	model VARCHAR(64) NOT NULL,
	electric BOOLEAN,
	released DATE
)`

func sqlCarsObject(ds string) datadef.ObjectDef {
	return datadef.ObjectDef{
		Name:       "cars",
		Source:     "cars",
		PrimaryKey: "id",
		DataSource: ds,
		Fields: []datadef.Field{
			{Name: "id", Type: datadef.FieldNumber, Required: true, Mapping: "id"},
			{Name: "model", Type: datadef.FieldString, Required: true, Mapping: "model"},
			{Name: "electric", Type: datadef.FieldBoolean, Mapping: "electric"},
			{Name: "released", Type: datadef.FieldDate, Mapping: "released"},
		},
	}
}

// exerciseSQL — общий сценарий для обоих диалектов: discovery, insert, конфликт, чтение.
func exerciseSQL(t *testing.T, ctx context.Context, ds datadef.DataSource) {
	m := newTestAccess(t)

	_, err := querySQL(ctx, ds, carsDDL)
	require.NoError(t, err)

	res, err := m.TestConnection(ctx, ds)
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)
	assert.Contains(t, res.Schema, "cars")

	fields, err := m.TableFields(ctx, ds, "cars")
	require.NoError(t, err)
	require.Len(t, fields, 4)
	assert.Equal(t, datadef.Field{Name: "id", Type: datadef.FieldNumber, Required: true, Mapping: "id"}, fields[0])
	assert.Equal(t, datadef.FieldString, fields[1].Type)
	assert.True(t, fields[1].Required)
	assert.Equal(t, datadef.FieldDate, fields[3].Type)

	_, err = m.TableFields(ctx, ds, "nope")
	require.ErrorIs(t, err, datadef.ErrNotFound)

	obj := sqlCarsObject(ds.Name)
	require.NoError(t, m.Insert(ctx, obj, ds, map[string]any{"id": 1, "model": "Leaf", "electric": true, "released": "2010-12-03"}))
	require.NoError(t, m.Insert(ctx, obj, ds, map[string]any{"id": 2, "model": "Corolla"}))

	err = m.Insert(ctx, obj, ds, map[string]any{"id": 1, "model": "dup"})
	require.ErrorIs(t, err, datadef.ErrConflict)

	recs, err := m.FetchObjects(ctx, obj, ds)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	page, _ := ApplyList(recs, ListParams{Sort: []SortKey{{Field: "id"}}})
	assert.Equal(t, 1.0, page[0]["id"])
	assert.Equal(t, "Leaf", page[0]["model"])
	assert.Equal(t, true, page[0]["electric"])
	released, ok := page[0]["released"].(time.Time)
	require.True(t, ok)
	assert.Equal(t, "2010-12-03", released.Format("2006-01-02"))
	assert.Nil(t, page[1]["electric"])
}

func TestMySQLIntegration(t *testing.T) {
	skipIntegration(t)
	ctx := context.Background()

	ctr, err := tcmysql.Run(ctx, "mysql:8.0.36",
		tcmysql.WithDatabase("designer"),
		tcmysql.WithUsername("designer"),
		tcmysql.WithPassword("designer"),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	ds := datadef.DataSource{Name: "shop", Type: datadef.SourceMySQL, Config: map[string]any{
		"server": host, "port": port.Port(), "username": "designer", "password": "designer", "database": "designer",
	}}
	exerciseSQL(t, ctx, ds)

	_, err = QueryPostgres(ctx, ds, "SELECT 1")
	require.ErrorIs(t, err, ErrWrongSourceType)
}

func TestPostgresIntegration(t *testing.T) {
	skipIntegration(t)
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("designer"),
		tcpostgres.WithUsername("designer"),
		tcpostgres.WithPassword("designer"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	ds := datadef.DataSource{Name: "warehouse", Type: datadef.SourcePostgres, Config: map[string]any{
		"server": host, "port": port.Port(), "username": "designer", "password": "designer", "database": "designer",
	}}
	exerciseSQL(t, ctx, ds)

	_, err = QueryMySQL(ctx, ds, "SELECT 1")
	require.ErrorIs(t, err, ErrWrongSourceType)
}
