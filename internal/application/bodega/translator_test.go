package bodega

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/bodega-agent/internal/domain"
	"github.com/jhoicas/bodega-agent/internal/domain/entity"
)

// fakeGenerator implementa ports.TextGenerator con una respuesta fija.
type fakeGenerator struct {
	text  string
	err   error
	delay time.Duration
	calls int
	last  string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	f.last = prompt
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

func TestTranslate_ConsultasFijas(t *testing.T) {
	tr := NewTranslator(TranslatorConfig{}, nil)

	batch, err := tr.Translate(entity.IntentListInventory, entity.Fields{})
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "SELECT * FROM products WHERE stock_current > 0", batch[0].SQL)
	assert.True(t, batch[0].Query)

	batch, err = tr.Translate(entity.IntentLowStockQuery, entity.Fields{})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM products WHERE stock_current < stock_minimum", batch[0].SQL)
	assert.Nil(t, batch[0].Guard)
}

func TestTranslate_ReportePorProducto(t *testing.T) {
	tr := NewTranslator(TranslatorConfig{}, nil)

	all, err := tr.Translate(entity.IntentGenerateReport, entity.Fields{})
	require.NoError(t, err)
	assert.Empty(t, all[0].Args)

	one, err := tr.Translate(entity.IntentGenerateReport, entity.Fields{Code: "A"})
	require.NoError(t, err)
	assert.Equal(t, []any{"A"}, one[0].Args)
	assert.Contains(t, one[0].SQL, "WHERE m.product_reference = ?")
}

func TestTranslate_EntradaEsLoteGuardado(t *testing.T) {
	tr := NewTranslator(TranslatorConfig{}, nil)

	batch, err := tr.Translate(entity.IntentRegisterEntry, entity.Fields{Code: "A", Quantity: "5", Reason: " compra "})
	require.NoError(t, err)
	require.Len(t, batch, 2, "sin creación: actualización + movimiento")

	assert.Equal(t, addStockSQL, batch[0].SQL)
	assert.Equal(t, []any{int64(5), "A"}, batch[0].Args)
	require.NotNil(t, batch[0].Guard)
	assert.ErrorIs(t, batch[0].Guard.Violation, domain.ErrProductNotFound)

	assert.Equal(t, insertMovementSQL, batch[1].SQL)
	assert.Equal(t, []any{"A", "entry", int64(5), "compra"}, batch[1].Args)
}

func TestTranslate_SalidaVerificaExistenciaYStock(t *testing.T) {
	tr := NewTranslator(TranslatorConfig{}, nil)

	batch, err := tr.Translate(entity.IntentRegisterExit, entity.Fields{Code: "A", Quantity: "100"})
	require.NoError(t, err)
	require.Len(t, batch, 3)

	assert.True(t, batch[0].Query)
	assert.ErrorIs(t, batch[0].Guard.Violation, domain.ErrProductNotFound)

	assert.Equal(t, subtractStockSQL, batch[1].SQL)
	assert.Equal(t, []any{int64(100), "A", int64(100)}, batch[1].Args)
	assert.ErrorIs(t, batch[1].Guard.Violation, domain.ErrInsufficientStock)

	assert.Equal(t, []any{"A", "exit", int64(100), ""}, batch[2].Args)
}

func TestTranslate_PoliticaCrearAgregaInsercionCondicional(t *testing.T) {
	tr := NewTranslator(TranslatorConfig{MissingProduct: MissingProductCreate}, nil)

	batch, err := tr.Translate(entity.IntentRegisterEntry, entity.Fields{
		Code: "Z", Quantity: "5", Name: "Arandela", Price: "1.25", Minimum: "4", Category: "Ferretería",
	})
	require.NoError(t, err)
	require.Len(t, batch, 3)

	create := batch[0]
	assert.Equal(t, createProductSQL, create.SQL)
	require.NotNil(t, create.Unless)
	assert.Equal(t, productExistsSQL, create.Unless.SQL)
	assert.Equal(t, []any{"Z"}, create.Unless.Args)
	assert.Equal(t, "Z", create.Args[0])
	assert.Equal(t, "Arandela", create.Args[1])
	assert.True(t, decimal.RequireFromString("1.25").Equal(create.Args[4].(decimal.Decimal)))
	assert.Equal(t, int64(4), create.Args[5])
}

func TestTranslate_PoliticaCrearUsaCodigoComoNombre(t *testing.T) {
	tr := NewTranslator(TranslatorConfig{MissingProduct: MissingProductCreate}, nil)

	batch, err := tr.Translate(entity.IntentRegisterEntry, entity.Fields{Code: "Z", Quantity: "1"})
	require.NoError(t, err)
	assert.Equal(t, "Z", batch[0].Args[1])
}

func TestTranslate_CamposInvalidos(t *testing.T) {
	tr := NewTranslator(TranslatorConfig{MissingProduct: MissingProductCreate}, nil)
	cases := []struct {
		name   string
		intent entity.Intent
		fields entity.Fields
	}{
		{"sin código", entity.IntentRegisterEntry, entity.Fields{Quantity: "5"}},
		{"sin cantidad", entity.IntentRegisterExit, entity.Fields{Code: "A"}},
		{"cantidad no numérica", entity.IntentRegisterEntry, entity.Fields{Code: "A", Quantity: "cinco"}},
		{"cantidad cero", entity.IntentRegisterExit, entity.Fields{Code: "A", Quantity: "0"}},
		{"cantidad negativa", entity.IntentRegisterEntry, entity.Fields{Code: "A", Quantity: "-2"}},
		{"cantidad fraccionaria", entity.IntentRegisterEntry, entity.Fields{Code: "A", Quantity: "2.5"}},
		{"precio inválido", entity.IntentRegisterEntry, entity.Fields{Code: "A", Quantity: "2", Price: "caro"}},
		{"precio negativo", entity.IntentRegisterEntry, entity.Fields{Code: "A", Quantity: "2", Price: "-1"}},
		{"precio con coma decimal", entity.IntentRegisterEntry, entity.Fields{Code: "A", Quantity: "2", Price: "1,50"}},
		{"cantidad con coma decimal", entity.IntentRegisterEntry, entity.Fields{Code: "A", Quantity: "5,0"}},
		{"passthrough no se traduce", entity.IntentRawPassthrough, entity.Fields{}},
		{"intent desconocido", entity.Intent("delete_everything"), entity.Fields{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tr.Translate(tc.intent, tc.fields)
			assert.ErrorIs(t, err, domain.ErrTranslation)
			assert.Equal(t, domain.KindTranslation, domain.KindOf(err))
		})
	}
}

func TestTranslate_PrecioInvalidoConPoliticaRechazar(t *testing.T) {
	tr := NewTranslator(TranslatorConfig{MissingProduct: MissingProductReject}, nil)

	_, err := tr.Translate(entity.IntentRegisterEntry, entity.Fields{Code: "A", Quantity: "2", Price: "1,50"})

	assert.Equal(t, domain.KindTranslation, domain.KindOf(err))
	assert.ErrorContains(t, err, "punto decimal")
}

func TestTranslate_CantidadDecimalEntera(t *testing.T) {
	tr := NewTranslator(TranslatorConfig{}, nil)

	batch, err := tr.Translate(entity.IntentRegisterEntry, entity.Fields{Code: "A", Quantity: "5.0"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), batch[0].Args[0])
}

func TestTranslate_Determinista(t *testing.T) {
	gen := &fakeGenerator{text: "SELECT 1"}
	tr := NewTranslator(TranslatorConfig{MissingProduct: MissingProductCreate}, gen)
	c := NewClassifier()
	prompt := "Registrar entrada de producto:\nCódigo: A\nStock: 5\nPrecio: 3.10\nMotivo: compra"

	first := c.Classify(prompt)
	second := c.Classify(prompt)
	a, err := tr.Translate(first.Intent, first.Fields)
	require.NoError(t, err)
	b, err := tr.Translate(second.Intent, second.Fields)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, 0, gen.calls, "los intents fijos nunca consultan al proveedor")
}

func TestPassthrough_TextoSinCambios(t *testing.T) {
	tr := NewTranslator(TranslatorConfig{}, nil)

	batch := tr.Passthrough("  select code from products; ")
	require.Len(t, batch, 1)
	assert.Equal(t, "  select code from products; ", batch[0].SQL)
	assert.True(t, batch[0].Query)
	assert.Nil(t, batch[0].Guard)

	batch = tr.Passthrough("DELETE FROM movements")
	assert.False(t, batch[0].Query)
}

func TestLooksLikeQuery(t *testing.T) {
	cases := []struct {
		sql  string
		want bool
	}{
		{"SELECT 1", true},
		{"(SELECT code FROM products) UNION (SELECT product_reference FROM movements)", true},
		{"-- productos activos\nSELECT * FROM products", true},
		{"/* reporte */ SELECT * FROM movements", true},
		{"/* a */ -- b\n  with t AS (SELECT 1) SELECT * FROM t", true},
		{"INSERT INTO movements (product_reference, kind, quantity) VALUES ('A', 'entry', 1) RETURNING id", true},
		{"UPDATE products SET stock_current = 0 WHERE code = 'A' RETURNING code, stock_current", true},
		{"INSERT INTO movements (product_reference, kind, quantity) VALUES ('A', 'entry', 1)", false},
		{"-- solo un comentario", false},
		{"UPDATE products SET name = 'returning' WHERE code = 'A'", false},
		{"", false},
	}
	for _, tc := range cases {
		t.Run(tc.sql, func(t *testing.T) {
			assert.Equal(t, tc.want, looksLikeQuery(tc.sql))
		})
	}
}

func TestTranslateFreeText_QuitaMarkdown(t *testing.T) {
	gen := &fakeGenerator{text: "Claro:\n```sql\nSELECT code FROM products WHERE price > 10\n```"}
	tr := NewTranslator(TranslatorConfig{}, gen)

	batch, err := tr.TranslateFreeText(context.Background(), "productos caros")
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "SELECT code FROM products WHERE price > 10", batch[0].SQL)
	assert.True(t, batch[0].Query)
	assert.Contains(t, gen.last, "productos caros")
}

func TestTranslateFreeText_Errores(t *testing.T) {
	_, err := NewTranslator(TranslatorConfig{}, nil).TranslateFreeText(context.Background(), "x")
	assert.Equal(t, domain.KindProvider, domain.KindOf(err), "sin proveedor")

	boom := errors.New("429 rate limited")
	_, err = NewTranslator(TranslatorConfig{}, &fakeGenerator{err: boom}).TranslateFreeText(context.Background(), "x")
	assert.Equal(t, domain.KindProvider, domain.KindOf(err))
	assert.ErrorIs(t, err, boom)

	_, err = NewTranslator(TranslatorConfig{}, &fakeGenerator{text: "```\n```"}).TranslateFreeText(context.Background(), "x")
	assert.Equal(t, domain.KindProvider, domain.KindOf(err), "SQL vacío")

	slow := &fakeGenerator{text: "SELECT 1", delay: time.Second}
	_, err = NewTranslator(TranslatorConfig{ProviderTimeout: 10 * time.Millisecond}, slow).TranslateFreeText(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrTimeout)
}
