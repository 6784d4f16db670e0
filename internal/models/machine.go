// Package models contains domain types for the FloorWatch live-run dashboard.
package models

import (
	"encoding/json"
)

// MachineStatus is the server-authoritative runtime state of a machine.
type MachineStatus string

const (
	StatusActive  MachineStatus = "Active"
	StatusIdle    MachineStatus = "Idle"
	StatusStopped MachineStatus = "Stopped"
)

// SignalQuality describes the link quality of a machine's reporting device.
type SignalQuality string

const (
	SignalGood    SignalQuality = "Good"
	SignalFair    SignalQuality = "Fair"
	SignalPoor    SignalQuality = "Poor"
	SignalUnknown SignalQuality = "Unknown"
)

// Machine identifies the physical machine behind a record.
type Machine struct {
	UID           string `json:"_id,omitempty"`
	MachineNumber string `json:"machineNumber"` // stable, unique within a factory
	MacAddress    string `json:"macAddress"`
	Name          string `json:"name"`
}

// Component is the part currently being produced.
type Component struct {
	ID              string  `json:"_id,omitempty"`
	Name            string  `json:"name"`
	Code            string  `json:"code"`
	TargetCycleTime Decimal `json:"targetCycleTime"` // seconds
	Photo           string  `json:"photo,omitempty"` // asset path, relative to the file URL
}

// Mould is the tool mounted on the machine.
type Mould struct {
	ID              string    `json:"_id,omitempty"`
	Name            string    `json:"name"`
	Serial          string    `json:"serial"`
	LastServiceDate Timestamp `json:"lastServiceDate"`
	NextServiceDate Timestamp `json:"nextServiceDate"`
	Status          string    `json:"status"`
}

// Note is an operator remark attached to a machine.
type Note struct {
	Type         string    `json:"type"`
	Note         string    `json:"note"`
	CreationDate Timestamp `json:"creationDate"`
}

// CycleSample is one entry of a machine's recent cycle history.
type CycleSample struct {
	CycleTime      Decimal   `json:"cycleTime"`
	EventTimeStamp Timestamp `json:"eventTimeStamp"`
}

// MachineRecord is one telemetry snapshot entry for a machine.
type MachineRecord struct {
	Machine                Machine       `json:"machine"`
	Status                 MachineStatus `json:"status"`
	SignalQuality          SignalQuality `json:"signalQuality"`
	EventTimeStamp         Timestamp     `json:"eventTimeStamp"`
	MachineFirstReportTime Timestamp     `json:"machineFirstReportTime"`
	MachineFirstReportType string        `json:"machineFirstReportType"`

	CycleTime           Decimal `json:"cycleTime"`
	CurrentProduction   Decimal `json:"currentProduction"`
	TargetProduction    Decimal `json:"targetProduction"`
	TotalMaterialsUsed  Decimal `json:"totalMaterialsUsed"`
	VirginMaterial      Decimal `json:"virginMaterial"`
	MasterBatchMaterial Decimal `json:"masterBatchMaterial"`
	Efficiency          Decimal `json:"efficiency"` // shift efficiency computed by the server

	// InsertHistory is ordered oldest first and bounded by the server.
	InsertHistory []CycleSample `json:"insertHistory"`

	Component Component `json:"component"`
	Mould     Mould     `json:"mould"`
	Color     string    `json:"color,omitempty"`
	Notes     []Note    `json:"notes"`
}

// UnmarshalJSON decodes field by field. A field of the wrong shape is left
// at its zero value; the record itself is still accepted.
func (r *MachineRecord) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}

	*r = MachineRecord{}
	decodeField(fields, "machine", &r.Machine)
	decodeField(fields, "status", &r.Status)
	decodeField(fields, "signalQuality", &r.SignalQuality)
	decodeField(fields, "eventTimeStamp", &r.EventTimeStamp)
	decodeField(fields, "machineFirstReportTime", &r.MachineFirstReportTime)
	decodeField(fields, "machineFirstReportType", &r.MachineFirstReportType)
	decodeField(fields, "cycleTime", &r.CycleTime)
	decodeField(fields, "currentProduction", &r.CurrentProduction)
	decodeField(fields, "targetProduction", &r.TargetProduction)
	decodeField(fields, "totalMaterialsUsed", &r.TotalMaterialsUsed)
	decodeField(fields, "virginMaterial", &r.VirginMaterial)
	decodeField(fields, "masterBatchMaterial", &r.MasterBatchMaterial)
	decodeField(fields, "efficiency", &r.Efficiency)
	decodeField(fields, "insertHistory", &r.InsertHistory)
	decodeField(fields, "component", &r.Component)
	decodeField(fields, "mould", &r.Mould)
	decodeField(fields, "color", &r.Color)
	decodeField(fields, "notes", &r.Notes)

	if r.SignalQuality == "" {
		r.SignalQuality = SignalUnknown
	}
	return nil
}

func decodeField[T any](fields map[string]json.RawMessage, key string, dst *T) {
	raw, ok := fields[key]
	if !ok {
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return
	}
	*dst = v
}
