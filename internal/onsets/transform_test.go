package onsets

import (
	"errors"
	"strconv"
	"testing"

	"github.com/sebdah/goldie/v2"
)

func assertGolden(t *testing.T, name string, table *Table) {
	t.Helper()
	data, err := table.Encode()
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}

func TestTransformTimedConditionTruth(t *testing.T) {
	log := "t_start,t_stop,condition,truth\n" +
		"0.001,0.5,A,true\n" +
		"1.2345,1.8,B,false\n"
	table, family, err := Transform([]byte(log), ',', "numerosity")
	if err != nil {
		t.Fatalf("Transform returned error: %v", err)
	}
	if family != FamilyTimed {
		t.Fatalf("expected timed family, got %s", family)
	}
	wantDurations := []float64{0.50, 0.57}
	wantTypes := []string{"A_true", "B_false"}
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(table.Rows))
	}
	for i, row := range table.Rows {
		got, err := strconv.ParseFloat(row[1], 64)
		if err != nil || got != wantDurations[i] {
			t.Fatalf("row %d duration = %q, want %v", i, row[1], wantDurations[i])
		}
		if row[2] != wantTypes[i] {
			t.Fatalf("row %d trial_type = %q, want %q", i, row[2], wantTypes[i])
		}
	}
	assertGolden(t, "timed_condition_truth", table)
}

func TestTransformTimedNumModDropsPauses(t *testing.T) {
	log := "t_start\tt_stop\tnum\tmod\n" +
		"10.004\t11.5\t3\t'visual '\n" +
		"12.0\t20.0\t0\tpause\n" +
		"21.125\t22.5\t5\t'audi tory'\n"
	table, _, err := Transform([]byte(log), '\t', "EMPRISE")
	if err != nil {
		t.Fatalf("Transform returned error: %v", err)
	}
	assertGolden(t, "timed_num_mod", table)
}

func TestTransformVerbatim(t *testing.T) {
	log := "onset\tduration\ttrial_type\textra\n" +
		"0.0\t1.5\tgo\tx\n" +
		"2.0\t30\tpause\tx\n" +
		"3.25\t1.5\tstop\tx\n"
	table, family, err := Transform([]byte(log), '\t', "")
	if err != nil {
		t.Fatalf("Transform returned error: %v", err)
	}
	if family != FamilyVerbatim {
		t.Fatalf("expected verbatim family, got %s", family)
	}
	assertGolden(t, "verbatim", table)
}

func TestTransformPrimingFoldsTrial(t *testing.T) {
	log := "trial,mod_prime,mod_target,num_prime,num_target,target.started,target.stopped\n" +
		"1,visual,visual,3,3,4.5,5.25\n" +
		"1,visual,visual,3,3,4.75,5.5\n"
	table, family, err := Transform([]byte(log), ',', "priming")
	if err != nil {
		t.Fatalf("Transform returned error: %v", err)
	}
	if family != FamilyPriming {
		t.Fatalf("expected priming family, got %s", family)
	}
	if len(table.Rows) != 1 {
		t.Fatalf("expected a single trial row, got %d", len(table.Rows))
	}
	row := table.Rows[0]
	if row[2] != "prime" || row[3] != "visual_visual" {
		t.Fatalf("unexpected trial classification %v", row)
	}
	assertGolden(t, "priming_single_trial", table)
}

func TestTransformPrimingListCells(t *testing.T) {
	log := "mod_prime,mod_target,num_prime,num_target,target.started,target.stopped\n" +
		"pause,pause,0,0,[],[]\n" +
		"audio,visual,2,4.0,\"[7.5, 7.0]\",\"[8.0, 8.25]\"\n" +
		"visual,audio,4,4.0,9.0,10.0\n"
	table, _, err := Transform([]byte(log), ',', "priming")
	if err != nil {
		t.Fatalf("Transform returned error: %v", err)
	}
	assertGolden(t, "priming_list_cells", table)
}

func TestTransformErrors(t *testing.T) {
	cases := []struct {
		name string
		log  string
		want error
	}{
		{name: "empty", log: "", want: ErrEmptyLog},
		{name: "header only", log: "t_start,t_stop,condition,truth\n", want: ErrEmptyLog},
		{name: "unknown columns", log: "a,b\n1,2\n", want: ErrUnknownSchema},
		{name: "no trial type", log: "t_start,t_stop\n1,2\n", want: ErrUnknownSchema},
		{name: "bad number", log: "t_start,t_stop,condition,truth\nx,2,A,true\n", want: ErrMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Transform([]byte(tc.log), ',', "")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRound2HalfEven(t *testing.T) {
	cases := map[float64]float64{
		0.125:  0.12,
		0.375:  0.38,
		1.2345: 1.23,
		0.499:  0.5,
	}
	for in, want := range cases {
		if got := round2(in); got != want {
			t.Fatalf("round2(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestDelimiter(t *testing.T) {
	if Delimiter("a/b/log.csv") != ',' || Delimiter("log.CSV") != ',' {
		t.Fatal("expected comma for csv")
	}
	if Delimiter("log.tsv") != '\t' {
		t.Fatal("expected tab for tsv")
	}
}
