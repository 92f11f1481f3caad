package core_test

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/klassenbuch/core"
)

type upload struct {
	Title string `json:"title" validate:"required,notblank"`
	Name  string `json:"file_name" validate:"omitempty,filename"`
}

func TestInitValidators(t *testing.T) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)

	tests := []struct {
		name    string
		in      upload
		wantErr map[string]string
	}{
		{name: "valid", in: upload{Title: "Maths", Name: "sheet.pdf"}},
		{name: "missing title", in: upload{}, wantErr: map[string]string{"title": "this field is required"}},
		{name: "blank title", in: upload{Title: "  \t"}, wantErr: map[string]string{"title": "this field cannot be blank"}},
		{name: "path in name", in: upload{Title: "x", Name: "../etc/passwd"}, wantErr: map[string]string{"file_name": "file_name must be a plain file name"}},
		{name: "windows path", in: upload{Title: "x", Name: `a\b.txt`}, wantErr: map[string]string{"file_name": "file_name must be a plain file name"}},
		{name: "dot dot", in: upload{Title: "x", Name: ".."}, wantErr: map[string]string{"file_name": "file_name must be a plain file name"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.in)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			vErrs, ok := err.(validator.ValidationErrors)
			require.True(t, ok)
			require.Len(t, vErrs, len(tt.wantErr))
			for _, fe := range vErrs {
				want, found := tt.wantErr[fe.Field()]
				require.True(t, found, "unexpected field %q", fe.Field())
				if want != "" {
					assert.Equal(t, want, fe.Translate(translator))
				}
			}
		})
	}
}

func TestCleanString(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", core.CleanString("  Ada Lovelace \n"))
	assert.Equal(t, "ada@example.com", core.CleanString(" Ada@Example.COM ", true))
	assert.Equal(t, "", core.CleanString("   "))
}
