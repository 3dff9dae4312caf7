package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/sensebox/ttn-osem-integration/internal/decoding"
	"github.com/sensebox/ttn-osem-integration/internal/storage"
)

var (
	boxColumns    = []string{"id", "name", "created_at", "updated_at", "ttn_app_id", "ttn_dev_id", "ttn_port", "ttn_profile", "ttn_decode_options"}
	sensorColumns = []string{"id", "box_id", "position", "title", "sensor_type", "unit"}
)

type BoxCommandTestSuite struct {
	suite.Suite

	mock sqlmock.Sqlmock
}

func (ts *BoxCommandTestSuite) SetupTest() {
	d, mock, err := sqlmock.New()
	ts.Require().NoError(err)
	ts.mock = mock
	storage.SetDB(sqlx.NewDb(d, "sqlmock"))
}

func (ts *BoxCommandTestSuite) TearDownTest() {
	ts.NoError(ts.mock.ExpectationsWereMet())
	storage.DB().Close()
}

func (ts *BoxCommandTestSuite) TestCreate() {
	assert := require.New(ts.T())

	ts.mock.ExpectBegin()
	ts.mock.ExpectExec("insert into box").
		WithArgs(sqlmock.AnyArg(), "my box", sqlmock.AnyArg(), sqlmock.AnyArg(), "my-app", "my-dev", int64(1), decoding.ProfileSenseBoxHome, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ts.mock.ExpectExec("insert into sensor").
		WithArgs("temperature", sqlmock.AnyArg(), 0, "Temperatur", "HDC1008", "°C").
		WillReturnResult(sqlmock.NewResult(0, 1))
	ts.mock.ExpectCommit()

	in := `{
		"name": "my box",
		"ttnAppID": "my-app",
		"ttnDevID": "my-dev",
		"ttnPort": 1,
		"ttnProfile": "sensebox/home",
		"sensors": [{"id": "temperature", "title": "Temperatur", "sensorType": "HDC1008", "unit": "°C"}]
	}`

	var out bytes.Buffer
	assert.NoError(createBox(context.Background(), strings.NewReader(in), &out))

	var b storage.Box
	assert.NoError(json.Unmarshal(out.Bytes(), &b))
	assert.Len(b.ID, 32)
	assert.Equal(b.ID, b.Sensors[0].BoxID)
	assert.Equal("my-app", b.TTNAppID)
}

func (ts *BoxCommandTestSuite) TestCreateInvalid() {
	ts.Run("unsupported profile", func() {
		err := createBox(context.Background(), strings.NewReader(`{"name": "my box", "ttnProfile": "foo"}`), &bytes.Buffer{})
		ts.Equal(decoding.ErrUnsupportedProfile, errors.Cause(err))
	})

	ts.Run("empty name", func() {
		ts.mock.ExpectBegin()
		ts.mock.ExpectRollback()

		err := createBox(context.Background(), strings.NewReader(`{"ttnProfile": "sensebox/home"}`), &bytes.Buffer{})
		ts.EqualError(err, "create box error: validate error: name must not be empty")
	})

	ts.Run("malformed json", func() {
		err := createBox(context.Background(), strings.NewReader(`{"name": `), &bytes.Buffer{})
		ts.Error(err)
	})
}

func (ts *BoxCommandTestSuite) TestUpdate() {
	assert := require.New(ts.T())
	now := time.Now()

	ts.mock.ExpectBegin()
	ts.mock.ExpectQuery(`select \* from box where id`).
		WithArgs("box1").
		WillReturnRows(sqlmock.NewRows(boxColumns).AddRow("box1", "old name", now, now, "old-app", "old-dev", nil, "", []byte("{}")))
	ts.mock.ExpectQuery("from sensor where box_id").
		WithArgs("box1").
		WillReturnRows(sqlmock.NewRows(sensorColumns).AddRow("s1", "box1", 0, "Temperatur", "", ""))
	ts.mock.ExpectExec("update box set").
		WithArgs("box1", sqlmock.AnyArg(), "new name", "my-app", "my-dev", nil, decoding.ProfileJSON, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ts.mock.ExpectExec("insert into sensor").
		WithArgs("s2", "box1", 0, "PM10", "", "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	ts.mock.ExpectExec("delete from sensor").
		WithArgs("box1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ts.mock.ExpectCommit()

	in := `{"id": "box1", "name": "new name", "ttnAppID": "my-app", "ttnDevID": "my-dev", "ttnProfile": "json", "sensors": [{"id": "s2", "title": "PM10"}]}`

	var out bytes.Buffer
	assert.NoError(updateBox(context.Background(), strings.NewReader(in), &out))

	var b storage.Box
	assert.NoError(json.Unmarshal(out.Bytes(), &b))
	assert.True(now.Equal(b.CreatedAt))

	assert.EqualError(updateBox(context.Background(), strings.NewReader(`{"name": "box"}`), &out), "box id must be set")
}

func (ts *BoxCommandTestSuite) TestGetNotFound() {
	ts.mock.ExpectQuery(`select \* from box where id`).
		WithArgs("box1").
		WillReturnRows(sqlmock.NewRows(boxColumns))

	err := getBox(context.Background(), "box1", &bytes.Buffer{})
	ts.Equal(storage.ErrDoesNotExist, errors.Cause(err))
}

func TestBoxCommand(t *testing.T) {
	suite.Run(t, new(BoxCommandTestSuite))
}
