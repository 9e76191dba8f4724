package mi

import (
	"context"

	"github.com/nvme-mi/nvme-mi-go/pkg/nvme"
	"github.com/nvme-mi/nvme-mi-go/pkg/wire"
)

// healthClearOnRead is the Subsystem Health Status Poll "clear status" bit
// in request dword 1.
const healthClearOnRead uint32 = 1 << 31

// ReadMIData runs NVMe-MI Read Data with request dword 0 cdw0 and returns the
// response data. See nvme.ReadDataCDW0.
func (e *Endpoint) ReadMIData(ctx context.Context, cdw0 uint32) ([]byte, error) {
	resp, err := e.miCommand(ctx, wire.MIOpReadData, cdw0, 0)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ReadSubsystemInfo reads the NVM Subsystem Information structure.
func (e *Endpoint) ReadSubsystemInfo(ctx context.Context) (*nvme.SubsystemInfo, error) {
	data, err := e.ReadMIData(ctx, nvme.ReadDataCDW0(nvme.DataTypeSubsystemInfo, 0, 0))
	if err != nil {
		return nil, err
	}
	return nvme.ParseSubsystemInfo(data)
}

// ReadPortInfo reads the Port Information structure for portID.
func (e *Endpoint) ReadPortInfo(ctx context.Context, portID uint8) (*nvme.PortInfo, error) {
	data, err := e.ReadMIData(ctx, nvme.ReadDataCDW0(nvme.DataTypePortInfo, portID, 0))
	if err != nil {
		return nil, err
	}
	return nvme.ParsePortInfo(data)
}

// ReadControllerList reads the identifiers of the subsystem's controllers
// at or above startID.
func (e *Endpoint) ReadControllerList(ctx context.Context, startID uint16) (*nvme.ControllerList, error) {
	data, err := e.ReadMIData(ctx, nvme.ReadDataCDW0(nvme.DataTypeControllerList, 0, startID))
	if err != nil {
		return nil, err
	}
	return nvme.ParseControllerList(data)
}

// ReadControllerInfo reads the Controller Information structure for ctrlID.
func (e *Endpoint) ReadControllerInfo(ctx context.Context, ctrlID uint16) (*nvme.ControllerInfo, error) {
	data, err := e.ReadMIData(ctx, nvme.ReadDataCDW0(nvme.DataTypeControllerInfo, 0, ctrlID))
	if err != nil {
		return nil, err
	}
	return nvme.ParseControllerInfo(data)
}

// SubsystemHealthStatusPoll reads the NVM subsystem health status. With clearChanged
// set the endpoint resets its composite controller status after reporting.
func (e *Endpoint) SubsystemHealthStatusPoll(ctx context.Context, clearChanged bool) (*nvme.SubsystemHealthStatus, error) {
	var cdw1 uint32
	if clearChanged {
		cdw1 = healthClearOnRead
	}
	resp, err := e.miCommand(ctx, wire.MIOpSubsystemHealthStatusPoll, 0, cdw1)
	if err != nil {
		return nil, err
	}
	return nvme.ParseSubsystemHealthStatus(resp.Data)
}
