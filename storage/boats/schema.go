package boats

const createBoatTypes = `CREATE TABLE IF NOT EXISTS boat_types (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL
)`

const createBoats = `CREATE TABLE IF NOT EXISTS boats (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	boat_type_id TEXT NOT NULL REFERENCES boat_types(id),
	length       REAL NOT NULL DEFAULT 0,
	price        REAL NOT NULL DEFAULT 0,
	description  TEXT NOT NULL DEFAULT '',
	latitude     REAL,
	longitude    REAL,
	restricted   INTEGER NOT NULL DEFAULT 0
)`

const createBoatsTypeIndex = `CREATE INDEX IF NOT EXISTS idx_boats_type ON boats(boat_type_id)`

// 记录字段名到列名；只有这里列出的字段可以被批量更新
var editableColumns = map[string]string{
	FieldName:        "name",
	FieldLength:      "length",
	FieldPrice:       "price",
	FieldDescription: "description",
}

// 演示数据
var seedTypes = [][2]string{
	{"sailboat", "Sailboat"},
	{"kayak", "Kayak"},
	{"fishing", "Fishing Boat"},
}

type seedBoat struct {
	id, name, boatType string
	length, price      float64
	description        string
	lat, lng           float64
	restricted         bool
}

var seedBoats = []seedBoat{
	{"a01", "Sea Breeze", "sailboat", 28, 45000, "Classic cruiser with a roomy cockpit", 37.8080, -122.4177, false},
	{"a02", "Blue Wind", "sailboat", 34, 78500, "Fast coastal racer", 41.3721, -71.9575, false},
	{"a03", "Tidewater", "sailboat", 22, 18900, "Day sailer, trailer included", 44.6488, -63.5752, false},
	{"k01", "Paddler", "kayak", 12, 950, "Stable touring kayak", 45.5017, -73.5673, false},
	{"k02", "River Otter", "kayak", 10, 620, "Whitewater play boat", 39.7392, -104.9903, false},
	{"f01", "Reel Deal", "fishing", 19, 23500, "Center console with live well", 25.7617, -80.1918, false},
	{"f02", "Harbor Ghost", "fishing", 24, 31000, "Owner listing, location private", 47.6062, -122.3321, true},
}
