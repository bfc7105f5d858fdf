package service

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"geotasks/api/internal/model"
)

// ExportSheet is the worksheet holding exported tasks
const ExportSheet = "Tasks"

var exportHeaders = []interface{}{"ID", "Title", "Description", "Priority", "Done", "Created At"}

// Export writes every active task of caller matching filter to an xlsx workbook
func (s *TaskService) Export(ctx context.Context, caller *model.User, filter model.TaskFilter) (*bytes.Buffer, error) {
	var tasks []model.Task
	for offset := 0; ; offset += model.MaxPageLimit {
		page, err := s.repo.ListActiveTasks(ctx, caller.ID, filter, model.NewPage(offset, model.MaxPageLimit))
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, page...)
		if len(page) < model.MaxPageLimit {
			break
		}
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", ExportSheet); err != nil {
		return nil, err
	}

	if err := setRow(f, 1, exportHeaders...); err != nil {
		return nil, err
	}
	for i, task := range tasks {
		err := setRow(f, i+2,
			task.ID,
			task.Title,
			task.Description,
			string(task.Priority),
			strconv.FormatBool(task.Done),
			task.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		)
		if err != nil {
			return nil, fmt.Errorf("write task %d: %w", task.ID, err)
		}
	}

	widths := []struct {
		from, to string
		width    float64
	}{{"A", "A", 8}, {"B", "C", 40}, {"D", "F", 20}}
	for _, w := range widths {
		if err := f.SetColWidth(ExportSheet, w.from, w.to, w.width); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return &buf, nil
}

func setRow(f *excelize.File, row int, values ...interface{}) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(ExportSheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}
