package controlplane

import "github.com/relaymesh/githook-worker/wcontext"

// DriversClient is the control-plane DriversService client. The API surfaces
// one list endpoint; looking up a single driver by id (needed by the
// worker's run() prologue) is done by listing and filtering, since no
// GetDriver endpoint is named in the contract.
type DriversClient struct {
	c *Client
}

// NewDriversClient wraps c for DriversService calls.
func NewDriversClient(c *Client) *DriversClient {
	return &DriversClient{c: c}
}

// ListDrivers calls cloud.v1.DriversService/ListDrivers.
func (d *DriversClient) ListDrivers(wctx *wcontext.Context) ([]DriverRecord, error) {
	resp, err := d.c.postJSON(wctx, "/cloud.v1.DriversService/ListDrivers", map[string]any{})
	if err != nil {
		return nil, err
	}
	raw := readArray(resp, "drivers")
	out := make([]DriverRecord, 0, len(raw))
	for _, rec := range raw {
		out = append(out, decodeDriver(rec))
	}
	return out, nil
}

// GetDriver finds a driver by id among ListDrivers' results.
func (d *DriversClient) GetDriver(wctx *wcontext.Context, id string) (DriverRecord, bool, error) {
	drivers, err := d.ListDrivers(wctx)
	if err != nil {
		return DriverRecord{}, false, err
	}
	for _, rec := range drivers {
		if rec.ID == id {
			return rec, true, nil
		}
	}
	return DriverRecord{}, false, nil
}

func decodeDriver(rec map[string]any) DriverRecord {
	return DriverRecord{
		ID:         readString(rec, "id"),
		Name:       readString(rec, "name"),
		ConfigJSON: readString(rec, "config_json", "configJson"),
		Enabled:    readBool(rec, "enabled"),
	}
}
