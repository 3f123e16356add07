package service

import (
	"sort"

	"github.com/noah-isme/qr-attendance-api/internal/models"
)

// ReconcileDailyStatus left-joins the roster with the events recorded on day. Every roster
// member appears exactly once; events for students no longer on the roster, or for another
// day, are ignored. Output is ordered by class, bus, name and finally student id.
func ReconcileDailyStatus(day string, roster []models.Student, events []models.Attendance) models.DailyStatusReport {
	byStudent := make(map[string]models.Attendance, len(events))
	for _, evt := range events {
		if evt.Date != day {
			continue
		}
		if _, seen := byStudent[evt.StudentID]; !seen {
			byStudent[evt.StudentID] = evt
		}
	}

	members := make([]models.Student, len(roster))
	copy(members, roster)
	sort.SliceStable(members, func(i, j int) bool {
		a, b := members[i], members[j]
		if a.ClassName != b.ClassName {
			return a.ClassName < b.ClassName
		}
		if a.BusNumber != b.BusNumber {
			return a.BusNumber < b.BusNumber
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.StudentID < b.StudentID
	})

	report := models.DailyStatusReport{
		Date:     day,
		Total:    len(members),
		Students: make([]models.DailyStatus, 0, len(members)),
	}
	for _, m := range members {
		status := models.DailyStatus{
			StudentID: m.StudentID,
			Name:      m.Name,
			ClassName: m.ClassName,
			BusNumber: m.BusNumber,
			Status:    models.AttendanceStatusAbsent,
			Date:      day,
		}
		if evt, ok := byStudent[m.StudentID]; ok {
			checkIn := evt.CheckInTime
			status.Status = models.AttendanceStatusPresent
			status.CheckInTime = &checkIn
			report.Present++
		} else {
			report.Absent++
		}
		report.Students = append(report.Students, status)
	}
	return report
}
