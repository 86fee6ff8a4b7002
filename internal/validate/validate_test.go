package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/calsync/internal/model"
)

func TestFields_Registration(t *testing.T) {
	t.Parallel()
	v := New()

	err := v.Struct(model.Registration{Email: "not-an-email", Password: "123"})
	require.Error(t, err)

	got := Fields(err)
	require.Len(t, got, 3)
	require.Equal(t, model.FieldError{Msg: "El name es obligatorio", Param: "name", Location: "body"}, got[0])
	require.Equal(t, "email", got[1].Param)
	require.Equal(t, "not-an-email", got[1].Value)
	require.Equal(t, "password", got[2].Param)
	require.Equal(t, "El password debe de tener al menos 6 caracteres", got[2].Msg)
	require.Nil(t, got[2].Value)
}

func TestFields_UsesJSONTags(t *testing.T) {
	t.Parallel()
	type body struct {
		Title string `json:"title,omitempty" validate:"required"`
		Notes string `validate:"max=3"`
	}
	got := Fields(New().Struct(body{Notes: "too long"}))
	require.Len(t, got, 2)
	require.Equal(t, "title", got[0].Param)
	require.Equal(t, "notes", got[1].Param)
	require.Equal(t, "notes no es válido (max)", got[1].Msg)
}

func TestFields_OtherErrors(t *testing.T) {
	t.Parallel()
	require.Nil(t, Fields(errors.New("boom")))
	require.Nil(t, Fields(nil))
}

func TestJoin(t *testing.T) {
	t.Parallel()
	type cfg struct {
		APIURL string `mapstructure:"api_url" validate:"required,url"`
		Level  string `mapstructure:"log_level" validate:"oneof=debug info"`
	}
	err := Join(New().Struct(cfg{Level: "loud"}))
	require.EqualError(t, err, "cfg.api_url: El api_url es obligatorio; cfg.log_level: log_level debe ser uno de: debug info")

	other := errors.New("x")
	require.Same(t, other, Join(other))
}
