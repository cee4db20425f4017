package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/far-prep/backend/internal/models"
	"github.com/far-prep/backend/internal/questions"
)

const choiceLetters = "ABCD"

type quizOptions struct {
	mode            string
	limit           int
	noShuffle       bool
	keepOrder       bool
	examCount       int
	examPreset      string
	session         string
	topic           string
	difficulty      int
	search          string
	hideExplanation bool
	batchSize       int
}

func newQuizCmd(opts *rootOptions) *cobra.Command {
	var q quizOptions

	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "Answer questions interactively",
		Long: `Run a study session in the terminal. Modes: learn, weak-areas, review,
bookmarks, exam and topics. Answer with A-D (or 1-4), i when you don't know;
q quits. A missed question comes back later in the same batch.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := models.Mode(q.mode)
			if !models.ValidModes[mode] {
				return fmt.Errorf("unknown mode %q", q.mode)
			}

			a, err := openApp(opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			req := questions.QueueRequest{
				Mode:           mode,
				Shuffle:        !q.noShuffle,
				ShuffleChoices: !q.keepOrder,
				ExamCount:      q.examCount,
				ExamPreset:     questions.ParseExamPreset(q.examPreset),
				Filter: questions.TopicFilter{
					Session:    models.Session(q.session),
					Topic:      q.topic,
					Difficulty: q.difficulty,
					Search:     q.search,
				},
			}
			_, err = runQuiz(cmd.Context(), a.svc, cmd.InOrStdin(), cmd.OutOrStdout(), req, q)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVarP(&q.mode, "mode", "m", string(models.ModeLearn), "study mode")
	f.IntVarP(&q.limit, "limit", "n", 0, "stop after this many questions (0 = whole queue)")
	f.BoolVar(&q.noShuffle, "no-shuffle", false, "keep queue order")
	f.BoolVar(&q.keepOrder, "keep-choice-order", false, "show choices in stored order")
	f.IntVar(&q.examCount, "exam-count", 25, "exam length: 10, 25 or 50")
	f.StringVar(&q.examPreset, "exam-preset", "all", "exam preset: all, weak or a session such as \"Session 2\"")
	f.StringVar(&q.session, "session", "", "topics mode: session filter")
	f.StringVar(&q.topic, "topic", "", "topics mode: topic filter")
	f.IntVar(&q.difficulty, "difficulty", 0, "topics mode: difficulty filter")
	f.StringVar(&q.search, "search", "", "topics mode: prompt search")
	f.BoolVar(&q.hideExplanation, "no-explain", false, "skip explanations after each answer")
	f.IntVar(&q.batchSize, "batch", questions.DefaultBatchSize, "questions per batch; misses repeat within a batch")
	return cmd
}

type quizSummary struct {
	Answered   int
	Correct    int
	BestStreak int
}

// runQuiz drives one session over the queue built for req, in batches. It
// returns early when the reader is exhausted or the user quits.
func runQuiz(ctx context.Context, svc *questions.Service, in io.Reader, out io.Writer, req questions.QueueRequest, q quizOptions) (quizSummary, error) {
	var sum quizSummary

	queue, err := svc.BuildQueue(ctx, req)
	if err != nil {
		return sum, err
	}
	if q.limit > 0 && len(queue) > q.limit {
		queue = queue[:q.limit]
	}
	if len(queue) == 0 {
		fmt.Fprintf(out, "Nothing to study in %s mode right now.\n", req.Mode)
		return sum, nil
	}

	session := svc.NewStudySession(queue, req.ShuffleChoices, q.batchSize)
	reader := bufio.NewReader(in)
	for {
		pq, ok := session.Next()
		if !ok {
			break
		}
		n, total := session.Position()
		printQuestion(out, pq, n, total, session.Streak())

		selected, quit, err := readChoice(reader, out)
		if err != nil {
			return sum, err
		}
		if quit {
			break
		}

		res, err := svc.RecordPresented(ctx, pq, selected, req.Mode)
		if err != nil {
			return sum, err
		}
		sum.Answered++

		correctLetter := choiceLetters[pq.PresentedCorrectIndex]
		if res.WasCorrect {
			sum.Correct++
			fmt.Fprintf(out, "Correct! ")
		} else {
			fmt.Fprintf(out, "Incorrect. The answer is %c. ", correctLetter)
		}
		fmt.Fprintf(out, "Proficiency %.0f%%, next due %s", res.Proficiency*100, res.NextDueAt.Local().Format("Jan 2 15:04"))
		if res.Mastered {
			fmt.Fprint(out, " (mastered)")
		}
		fmt.Fprintln(out)

		if !q.hideExplanation {
			exp, err := svc.Explain(ctx, pq.ID, &pq.IndexMap)
			if err != nil {
				return sum, err
			}
			printExplanation(out, exp, res.WasCorrect)
		}

		if batch, done := session.Answered(res.WasCorrect); done {
			fmt.Fprintf(out, "\nBatch complete: %d of %d correct, %d missed. %d questions left in the queue.\n",
				batch.Correct, batch.Answered, batch.Missed, session.Remaining())
		}
	}

	sum.BestStreak = session.BestStreak()
	fmt.Fprintf(out, "\nSession complete: %d of %d correct, best streak %d.\n", sum.Correct, sum.Answered, sum.BestStreak)
	return sum, nil
}

func printQuestion(out io.Writer, pq models.PresentedQuestion, n, total, streak int) {
	fmt.Fprintln(out, "\n========================================")
	fmt.Fprintf(out, "[%d/%d] %s · %s    streak %d\n", n, total, pq.Session, pq.Topic, streak)
	fmt.Fprintln(out, "========================================")
	fmt.Fprintln(out, pq.Prompt)
	fmt.Fprintln(out)
	for i, c := range pq.PresentedChoices {
		fmt.Fprintf(out, "  %c) %s\n", choiceLetters[i], c)
	}
}

func printExplanation(out io.Writer, exp *models.ExplanationResponse, wasCorrect bool) {
	e := exp.Explanation
	fmt.Fprintln(out)
	fmt.Fprintln(out, e.WhyCorrect)
	if e.KeyTakeaway != "" {
		fmt.Fprintln(out, e.KeyTakeaway)
	}
	if e.CommonMistake != "" {
		fmt.Fprintln(out, e.CommonMistake)
	}
	if !wasCorrect {
		for _, c := range exp.Contrast {
			fmt.Fprintln(out, "  -", c)
		}
	}
}

// readChoice prompts until it gets a valid answer. quit is true on "q" or
// end of input.
func readChoice(r *bufio.Reader, out io.Writer) (selected int, quit bool, err error) {
	for {
		fmt.Fprint(out, "\nYour answer (A-D, i = don't know, q to quit): ")
		line, err := r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, false, err
		}
		input := strings.TrimSpace(line)
		if input == "" && errors.Is(err, io.EOF) {
			return 0, true, nil
		}
		if strings.EqualFold(input, "q") {
			return 0, true, nil
		}
		if strings.EqualFold(input, "i") {
			return questions.DontKnow, false, nil
		}
		if idx, ok := parseChoice(input); ok {
			return idx, false, nil
		}
		fmt.Fprintln(out, "Please answer A, B, C or D.")
		if errors.Is(err, io.EOF) {
			return 0, true, nil
		}
	}
}

func parseChoice(s string) (int, bool) {
	if len(s) == 1 {
		if i := strings.IndexByte(choiceLetters, strings.ToUpper(s)[0]); i >= 0 {
			return i, true
		}
	}
	n, err := strconv.Atoi(s)
	if err == nil && n >= 1 && n <= models.ChoiceCount {
		return n - 1, true
	}
	return 0, false
}
