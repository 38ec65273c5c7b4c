package i18n

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCatalogueIsComplete(t *testing.T) {
	for key := range catalogue[English] {
		_, ok := catalogue[Burmese][key]
		require.Truef(t, ok, "missing burmese text for %s", key)
	}
	require.Len(t, catalogue[Burmese], len(catalogue[English]))
}

func TestTranslateWithParams(t *testing.T) {
	tr, err := New()
	require.NoError(t, err)

	require.Equal(t, "Question 2/5", tr.T(English, KeyProgress, "2", "5"))
	require.Equal(t, "မေးခွန်း 2/5", tr.T(Burmese, KeyProgress, "2", "5"))
}

func TestTranslateFallsBack(t *testing.T) {
	tr := MustNew()

	require.Equal(t, "Failed to save answer. Try again.", tr.T(Lang("fr"), KeyAnswerFailed))
	require.Equal(t, "Something went wrong.", tr.T(English, Key("does_not_exist")))
}

func TestParseLang(t *testing.T) {
	require.Equal(t, Burmese, ParseLang("my-MM"))
	require.Equal(t, Burmese, ParseLang(" MY "))
	require.Equal(t, English, ParseLang("en-US"))
	require.Equal(t, English, ParseLang(""))
}
