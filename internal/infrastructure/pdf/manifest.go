package pdf

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/phpdave11/gofpdf"

	"github.com/sanosuguru/go-bus-seat-reservation/internal/domain/booking"
)

var columns = []struct {
	title string
	width float64
}{
	{"Seat", 15},
	{"Passenger", 60},
	{"Age", 15},
	{"Gender", 22},
	{"Booking", 78},
}

// ManifestRenderer は乗客名簿を A4 縦の PDF に出力する
type ManifestRenderer struct{}

func NewManifestRenderer() *ManifestRenderer {
	return &ManifestRenderer{}
}

func (r *ManifestRenderer) Render(m *booking.Manifest) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Passenger Manifest "+m.BusNumber, true)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "PASSENGER MANIFEST")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	lines := []string{
		fmt.Sprintf("Bus     : %s (%s)", m.BusName, m.BusNumber),
		fmt.Sprintf("Route   : %s - %s", m.FromCity, m.ToCity),
		fmt.Sprintf("Depart  : %s %s", m.ScheduleDate, m.ScheduleTime),
		fmt.Sprintf("Seats   : %d confirmed / %d total", m.Confirmed(), m.TotalSeats),
		"Printed : " + m.GeneratedAt.Format("2006-01-02 15:04"),
	}
	for _, s := range lines {
		pdf.Cell(0, 6, tr(s))
		pdf.Ln(6)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for _, c := range columns {
		pdf.CellFormat(c.width, 7, c.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	if len(m.Entries) == 0 {
		pdf.CellFormat(totalWidth(), 7, "No confirmed seats", "1", 1, "C", false, 0, "")
	}
	for _, e := range m.Entries {
		row := []string{
			strconv.Itoa(e.SeatNumber),
			tr(e.Passenger.Name),
			strconv.Itoa(e.Passenger.Age),
			string(e.Passenger.Gender),
			e.BookingID,
		}
		for i, c := range columns {
			align := "L"
			if i == 0 || i == 2 {
				align = "C"
			}
			pdf.CellFormat(c.width, 7, row[i], "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func totalWidth() float64 {
	w := 0.0
	for _, c := range columns {
		w += c.width
	}
	return w
}
