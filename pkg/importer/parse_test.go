package importer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleData = `import { Dynasty, HistoricalEvent } from '../types';

// Major Dynasties and Periods
export const DYNASTIES: Dynasty[] = [
    { id: 'xia', name: 'Xia', chineseName: '夏', startYear: -2070, endYear: -1600, color: '#57534e', description: '中国史书中记载的第一个世袭制朝代。' },
    { id: 'tang', name: 'Tang', chineseName: '唐', startYear: 618, endYear: 907, color: '#ea580c', description: '万国来朝，诗歌与艺术的巅峰。' }, // Orange
    /* block comment */
    { id: "qing", name: "Qing", chineseName: "清", startYear: 1636, endYear: 1912, color: "#1e40af", description: "最后的封建王朝" },
];

export const KEY_EVENTS: HistoricalEvent[] = [
    // --- 上古 ---
    { year: -2070, title: '夏朝建立', titleEn: 'Xia Dynasty Established', type: 'politics', importance: 1 },
    { year: -1250, title: '武丁中兴', titleEn: 'Wu Ding\'s Prosperity', type: 'politics', importance: 4 },
    { year: 755, title: 'URL: http://example.com', titleEn: 'a, b: c', type: 'war', importance: 1, },
];

export const getDynastyPower = (d: Dynasty, year: number) => {
    if (['tang', 'han_west'].includes(d.id)) return 90;
    return 50;
};
`

func TestParse(t *testing.T) {
	ds, err := Parse([]byte(sampleData))
	require.NoError(t, err)

	require.Len(t, ds.Dynasties, 3)
	assert.Equal(t, DynastyRecord{
		ID:          "xia",
		Name:        "Xia",
		ChineseName: "夏",
		StartYear:   -2070,
		EndYear:     -1600,
		Color:       "#57534e",
		Description: "中国史书中记载的第一个世袭制朝代。",
	}, ds.Dynasties[0])
	assert.Equal(t, "qing", ds.Dynasties[2].ID)

	require.Len(t, ds.Events, 3)
	assert.Equal(t, EventRecord{Year: -2070, Title: "夏朝建立", TitleEn: "Xia Dynasty Established", Type: "politics", Importance: 1}, ds.Events[0])
	assert.Equal(t, "Wu Ding's Prosperity", ds.Events[1].TitleEn)
	assert.Equal(t, "URL: http://example.com", ds.Events[2].Title)
	assert.Equal(t, "a, b: c", ds.Events[2].TitleEn)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		wantArray string
		notFound  bool
	}{
		{
			name:      "missing dynasties",
			src:       `export const KEY_EVENTS: HistoricalEvent[] = [];`,
			wantArray: DynastiesArray,
			notFound:  true,
		},
		{
			name:      "missing events",
			src:       `export const DYNASTIES: Dynasty[] = [];`,
			wantArray: EventsArray,
			notFound:  true,
		},
		{
			name:      "similar name is not a match",
			src:       `export const DYNASTIES_V2 = []; export const KEY_EVENTS = [];`,
			wantArray: DynastiesArray,
			notFound:  true,
		},
		{
			name:      "unterminated string",
			src:       "export const DYNASTIES = [ { id: 'xia } ];",
			wantArray: DynastiesArray,
		},
		{
			name:      "unterminated array",
			src:       "export const DYNASTIES = [ { id: 'xia' }",
			wantArray: DynastiesArray,
		},
		{
			name:      "wrong field type",
			src:       "export const DYNASTIES = [ { id: 'xia', startYear: 'long ago' } ]; export const KEY_EVENTS = [];",
			wantArray: DynastiesArray,
		},
		{
			name:      "code inside array",
			src:       "export const DYNASTIES = [ foo() ]; export const KEY_EVENTS = [];",
			wantArray: DynastiesArray,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			require.Error(t, err)

			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr), "error %v is not *ParseError", err)
			assert.Equal(t, tt.wantArray, parseErr.Array)
			if tt.notFound {
				assert.ErrorIs(t, err, ErrArrayNotFound)
			}
		})
	}
}

func TestToJSON(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"empty", "[]", "[]"},
		{"trailing commas", "[ {a: 1,}, ]", `[{"a":1}]`},
		{"literals", "[true, false, null, undefined]", "[true,false,null,null]"},
		{"numbers", "[-1, +2, 3.5, 1e3]", "[-1,2,3.5,1e3]"},
		{"unicode escape", `['\u4e2d']`, `["中"]`},
		{"double quote inside single", `['say "hi"']`, `["say \"hi\""]`},
		{"stops at close", "[1] ; trailing code(", "[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := toJSON(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
