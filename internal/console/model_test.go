package console

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/walkingpad-tracker/internal/controller"
	"github.com/zombor/walkingpad-tracker/internal/history"
	"github.com/zombor/walkingpad-tracker/internal/reading"
	"github.com/zombor/walkingpad-tracker/internal/status"
)

func TestConsole(t *testing.T) {
	// Disable logging during tests
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	RegisterFailHandler(Fail)
	RunSpecs(t, "Console Suite")
}

// mockController records the calls the console makes
type mockController struct {
	calls      []string
	session    controller.Session
	uploadData []byte
	uploadType string
}

func (m *mockController) StartCamera(ctx context.Context) error {
	m.calls = append(m.calls, "start")
	m.session.Active = true
	return nil
}

func (m *mockController) StopCamera() {
	m.calls = append(m.calls, "stop")
	m.session = controller.Session{}
}

func (m *mockController) ToggleAutoCapture(ctx context.Context) (bool, error) {
	m.calls = append(m.calls, "auto")
	m.session.AutoCapture = !m.session.AutoCapture
	return m.session.AutoCapture, nil
}

func (m *mockController) CaptureFrame(ctx context.Context) error {
	m.calls = append(m.calls, "capture")
	return nil
}

func (m *mockController) HandleManualUpload(ctx context.Context, data []byte, contentType string) error {
	m.calls = append(m.calls, "upload")
	m.uploadData = data
	m.uploadType = contentType
	return nil
}

func (m *mockController) ClearHistory() error {
	m.calls = append(m.calls, "clear")
	return nil
}

func (m *mockController) Session() controller.Session {
	return m.session
}

// mockHistory is a fixed history
type mockHistory struct {
	entries []reading.CapturedReading
}

func (m *mockHistory) Entries() []reading.CapturedReading {
	return m.entries
}

func keyPress(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press feeds msg through Update and runs any resulting command once,
// feeding its message back in
func press(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd == nil {
		return m, nil
	}
	out := cmd()
	if done, ok := out.(actionDoneMsg); ok {
		next, _ = m.Update(done)
		return next.(Model), nil
	}
	return m, cmd
}

var _ = Describe("Model", func() {
	var (
		ctrl  *mockController
		hist  *mockHistory
		model Model
	)

	BeforeEach(func() {
		ctrl = &mockController{}
		hist = &mockHistory{}
		model = NewModel(context.Background(), ctrl, hist, status.Snapshot{
			Status: status.Status{Message: "Ready.", Kind: status.KindInfo},
		})
	})

	DescribeTable("key bindings",
		func(key string, call string) {
			press(model, keyPress(key))
			Expect(ctrl.calls).To(Equal([]string{call}))
		},
		Entry("s starts the camera", "s", "start"),
		Entry("x stops the camera", "x", "stop"),
		Entry("a toggles auto-capture", "a", "auto"),
		Entry("c captures a frame", "c", "capture"),
	)

	It("should refresh the session after an action", func() {
		model, _ = press(model, keyPress("s"))
		Expect(model.View()).To(ContainSubstring("Camera: on"))
	})

	It("should quit on q", func() {
		_, cmd := model.Update(keyPress("q"))
		Expect(cmd).NotTo(BeNil())
		Expect(cmd()).To(Equal(tea.Quit()))
	})

	Describe("clearing history", func() {
		It("should ask for confirmation", func() {
			model, _ = press(model, keyPress("C"))
			Expect(model.View()).To(ContainSubstring("Clear all history? (y/n)"))
			Expect(ctrl.calls).To(BeEmpty())
		})

		It("should clear on y", func() {
			model, _ = press(model, keyPress("C"))
			model, _ = press(model, keyPress("y"))
			Expect(ctrl.calls).To(Equal([]string{"clear"}))
		})

		It("should do nothing on n", func() {
			model, _ = press(model, keyPress("C"))
			model, _ = press(model, keyPress("n"))
			Expect(ctrl.calls).To(BeEmpty())
			Expect(model.View()).NotTo(ContainSubstring("Clear all history?"))
		})
	})

	Describe("uploading a file", func() {
		var path string

		BeforeEach(func() {
			path = filepath.Join(GinkgoT().TempDir(), "pad.jpg")
			Expect(os.WriteFile(path, []byte("jpeg bytes"), 0644)).To(Succeed())
		})

		It("should read the typed path and pass its content type", func() {
			model, _ = press(model, keyPress("u"))
			model, _ = press(model, keyPress(path))
			Expect(model.View()).To(ContainSubstring("Upload file: " + path))
			model, _ = press(model, tea.KeyMsg{Type: tea.KeyEnter})

			Expect(ctrl.calls).To(Equal([]string{"upload"}))
			Expect(ctrl.uploadData).To(Equal([]byte("jpeg bytes")))
			Expect(ctrl.uploadType).To(Equal("image/jpeg"))
		})

		It("should cancel on escape", func() {
			model, _ = press(model, keyPress("u"))
			model, _ = press(model, keyPress("abc"))
			model, _ = press(model, tea.KeyMsg{Type: tea.KeyEsc})
			model, _ = press(model, tea.KeyMsg{Type: tea.KeyEnter})
			Expect(ctrl.calls).To(BeEmpty())
		})
	})

	Describe("View", func() {
		BeforeEach(func() {
			hist.entries = []reading.CapturedReading{{
				CapturedAt: time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC),
				Fields:     reading.Fields{Time: "23:48", Calories: "--", Speed: "3.0", Steps: "--", Distance: "1.1"},
			}}
		})

		It("should render reporter updates", func() {
			last := hist.entries[0]
			model, _ = press(model, snapshotMsg(status.Snapshot{
				Status: status.Status{Message: "Captured: " + last.Summary(), Kind: status.KindSuccess},
				Stats:  history.Stats{TotalCaptures: 3, SuccessfulCaptures: 2},
				Last:   &last,
			}))

			view := model.View()
			Expect(view).To(ContainSubstring("Captured: Time: 23:48"))
			Expect(view).To(ContainSubstring("Captures: 3"))
			Expect(view).To(ContainSubstring("Success: 67%"))
			Expect(view).To(ContainSubstring("23:48"))
		})

		It("should ignore a snapshot older than the one shown", func() {
			model, _ = press(model, snapshotMsg(status.Snapshot{
				Seq:    5,
				Status: status.Status{Message: "Captured: done", Kind: status.KindSuccess},
			}))
			model, _ = press(model, snapshotMsg(status.Snapshot{
				Seq:    4,
				Status: status.Status{Message: "Capturing frame...", Kind: status.KindProcessing},
			}))

			view := model.View()
			Expect(view).To(ContainSubstring("Captured: done"))
			Expect(view).NotTo(ContainSubstring("Capturing frame..."))
		})

		It("should show an empty history", func() {
			hist.entries = nil
			model, _ = press(model, snapshotMsg(status.Snapshot{}))
			Expect(model.View()).To(ContainSubstring("No readings yet."))
		})
	})
})
