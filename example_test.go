package relidx_test

import (
	"context"
	"fmt"

	"github.com/tidalstore/relidx"
	"github.com/tidalstore/relidx/catalog"
)

func ExampleBuildIndex() {
	schema := catalog.NewSchema([]catalog.Column{
		{Name: "id", Type: catalog.TypeInteger},
		{Name: "qty", Type: catalog.TypeInteger},
	})
	if err := schema.SetIndexedColumns([]int{0}); err != nil {
		panic(err)
	}

	ix, err := relidx.BuildIndex(relidx.IndexMetadata{
		Name:       "orders_pk",
		Constraint: relidx.ConstraintPrimaryKey,
		KeySchema:  schema,
	})
	if err != nil {
		panic(err)
	}
	defer ix.Close(context.Background())

	ctx := context.Background()
	for i := int32(0); i < 3; i++ {
		row := catalog.NewTuple(schema)
		_ = row.SetValue(0, catalog.NewInteger(i))
		_ = row.SetValue(1, catalog.NewInteger(i*10))
		if err := ix.InsertEntry(ctx, row, relidx.ItemPointer{Block: uint32(i), Offset: 0}); err != nil {
			panic(err)
		}
	}

	probe := catalog.NewTuple(schema)
	_ = probe.SetValue(0, catalog.NewInteger(1))
	locations, err := ix.ScanKey(ctx, probe)
	if err != nil {
		panic(err)
	}

	fmt.Println(ix.KeyEncoding())
	fmt.Println(locations)
	// Output:
	// Ints1
	// [(1,0)]
}
