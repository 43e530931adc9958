package textnorm

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	assert.Equal(t, "SERIA RK NR 028132", Clean("  SERIA RK   NR 028132  "))
	assert.Equal(t, "Ion I. O'Neil - test", Clean("Ion |. O\u2019Neil \u2013 test"))
	assert.Equal(t, "", Clean("   "))
}

func TestLines(t *testing.T) {
	raw := "ROMANIA\r\n\r\n  IDENTITY   CARD \rSERIA RK\n\n\tCNP 1890506430036 \n"

	lines := Lines(raw)
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"ROMANIA", "IDENTITY CARD", "SERIA RK", "CNP 1890506430036"}, Texts(lines))
	for i, l := range lines {
		assert.Equal(t, i, l.Index)
	}
}

func TestLines_NoEmptyOrPaddedLines(t *testing.T) {
	raw := "a\u00a0 \u00a0b\n   \n|x|\n\u202f\n c \t d "
	for _, l := range Lines(raw) {
		assert.NotEmpty(t, l.Text)
		assert.Equal(t, strings.TrimSpace(l.Text), l.Text)
		assert.NotContains(t, l.Text, "\u00a0")
		assert.NotContains(t, l.Text, "  ")
	}
	assert.Equal(t, "a b", Lines(raw)[0].Text)
	assert.Equal(t, "IxI", Lines(raw)[1].Text)
	assert.Equal(t, "c d", Lines(raw)[2].Text)
}

func TestLines_Empty(t *testing.T) {
	assert.Empty(t, Lines(""))
	assert.Empty(t, Lines("\n\r\n  \n"))
}

func TestFold(t *testing.T) {
	assert.Equal(t, "CETATENIE", Fold("Cetățenie"))
	assert.Equal(t, Fold("CETATENIE"), Fold("Cetățenie"))
	assert.Equal(t, "ROMANA / ROU", Fold("Română / ROU"))
	assert.Equal(t, "MUN.BUCURESTI SEC.3", Fold("Mun.București Sec.3"))
	assert.Equal(t, "NATIONALITE", Fold("Nationalité"))
	assert.Equal(t, "romana", FoldLower("Română"))
}

func TestFoldOffsets(t *testing.T) {
	s := "Cetățenie/Nationalité Română"
	folded, ends := FoldOffsets(s)
	require.Len(t, ends, len(folded))

	label := "NATIONALITE"
	at := strings.Index(folded, label)
	require.GreaterOrEqual(t, at, 0)
	rest := strings.TrimSpace(s[ends[at+len(label)-1]:])
	assert.Equal(t, "Română", rest)

	end := ends[len("CETATENIE")-1]
	assert.Equal(t, "Cetățenie", s[:end])
}

func ExampleLines() {
	for _, l := range Lines("ROMANIA\n\n  Nume/Nom/Last name \nCACIULATU") {
		fmt.Println(l.Index, l.Text)
	}
	// Output:
	// 0 ROMANIA
	// 1 Nume/Nom/Last name
	// 2 CACIULATU
}
