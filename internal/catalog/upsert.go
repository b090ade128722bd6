package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadpipe/internal/db"
)

var propertyColumns = []string{
	"id", "apn", "county", "state", "street", "city", "zip_code",
	"owner_name", "owner_phone", "owner_email",
	"estimated_value", "equity_percent", "loan_balance",
	"bedrooms", "bathrooms", "square_ft", "year_built",
	"flags", "created_at", "updated_at",
}

// updateCols excludes id and created_at so an existing identity row keeps
// its id across delta pulls.
var propertyUpdateCols = []string{
	"state", "street", "city", "zip_code", "owner_name",
	"estimated_value", "equity_percent", "loan_balance",
	"bedrooms", "bathrooms", "square_ft", "year_built",
	"flags", "updated_at",
}

// UpsertRecords bulk-upserts normalized catalog records into the properties
// table, keyed on (apn, county). Returns the number of rows written.
func UpsertRecords(ctx context.Context, pool db.Pool, records []Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		flags := map[string]any{"catalog_vendor_id": r.VendorID}
		if r.Distressed {
			flags["catalog_distress"] = string(r.DistressType)
		}
		flagsJSON, err := json.Marshal(flags)
		if err != nil {
			return 0, eris.Wrap(err, "catalog: marshal flags")
		}

		rows = append(rows, []any{
			uuid.NewString(), r.APN, r.County, r.State, r.Street, r.City, r.ZipCode,
			r.OwnerName, "", "",
			r.EstimatedValue, r.EquityPercent, r.LoanBalance,
			r.Bedrooms, r.Bathrooms, r.SquareFt, r.YearBuilt,
			flagsJSON, now, now,
		})
	}

	n, err := db.BulkUpsert(ctx, pool, db.UpsertConfig{
		Table:        "properties",
		Columns:      propertyColumns,
		ConflictKeys: []string{"apn", "county"},
		UpdateCols:   propertyUpdateCols,
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "catalog: bulk upsert properties")
	}
	return n, nil
}
