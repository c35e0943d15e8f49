package service

import (
	"time"

	"modpoller/pkg/apis/response"
	"modpoller/pkg/modbus"
	"modpoller/pkg/poller"
	v1 "modpoller/pkg/v1"
)

// toPollGroup converts the API payload to the runtime group. Metadata is not
// set here; the manager owns IDs and versions.
func toPollGroup(in *v1.PollGroup) (*poller.PollGroup, error) {
	registers := make([]*poller.RegisterDefinition, 0, len(in.Registers))
	seen := make(map[string]struct{}, len(in.Registers))
	for _, r := range in.Registers {
		if _, dup := seen[r.Name]; dup {
			return nil, response.ErrInvalidRegister(r.Name, "duplicate name")
		}
		seen[r.Name] = struct{}{}
		def, err := toRegister(r)
		if err != nil {
			return nil, err
		}
		registers = append(registers, def)
	}

	enabled := true
	if in.Enabled != nil {
		enabled = *in.Enabled
	}

	group := &poller.PollGroup{
		Slave:     *in.Slave,
		Interval:  time.Duration(in.IntervalMs) * time.Millisecond,
		Endpoint:  toEndpoint(in.Endpoint),
		Registers: registers,
		Enabled:   enabled,
	}
	group.SetName(in.Name)
	return group, nil
}

func toEndpoint(in *v1.Endpoint) *poller.Endpoint {
	endpoint := &poller.Endpoint{Location: in.Location}
	if in.Option != nil {
		endpoint.Option = &poller.EndpointOption{
			Port:     in.Option.Port,
			BaudRate: in.Option.BaudRate,
			DataBits: in.Option.DataBits,
			Parity:   in.Option.Parity,
			StopBits: in.Option.StopBits,
		}
	}
	return endpoint
}

// toV1Group renders a stored group back into the API shape so a patch can be
// applied against the same document a client would have sent.
func toV1Group(in *poller.PollGroup) *v1.PollGroup {
	registers := make([]*v1.Register, 0, len(in.Registers))
	for _, def := range in.Registers {
		address := def.Address
		registers = append(registers, &v1.Register{
			Name:         def.Name,
			Address:      &address,
			RegisterType: def.RegisterType.String(),
			DataType:     def.DataType.String(),
			Unit:         def.Unit,
			Scale:        def.Scale,
			Offset:       def.Offset,
			IntervalMs:   uint(def.Interval / time.Millisecond),
			DetectChange: def.DetectChange,
		})
	}

	slave := in.Slave
	enabled := in.Enabled
	out := &v1.PollGroup{
		Name:       in.GetName(),
		Slave:      &slave,
		IntervalMs: uint(in.Interval / time.Millisecond),
		Registers:  registers,
		Enabled:    &enabled,
	}
	if in.Endpoint != nil {
		out.Endpoint = &v1.Endpoint{Location: in.Endpoint.Location}
		if in.Endpoint.Option != nil {
			out.Endpoint.Option = &v1.EndpointOption{
				Port:     in.Endpoint.Option.Port,
				BaudRate: in.Endpoint.Option.BaudRate,
				DataBits: in.Endpoint.Option.DataBits,
				Parity:   in.Endpoint.Option.Parity,
				StopBits: in.Endpoint.Option.StopBits,
			}
		}
	}
	return out
}

// toRegister builds a definition from a template when one is named, applying
// the payload's overrides on top, or from the explicit decode fields.
func toRegister(in *v1.Register) (*poller.RegisterDefinition, error) {
	if in.Template != "" {
		template, ok := poller.Templates[in.Template]
		if !ok {
			return nil, response.ErrUnknownTemplate(in.Template)
		}
		def := template(in.Name, *in.Address)
		if in.Unit != "" {
			def.Unit = in.Unit
		}
		if in.Scale != 0 {
			def.Scale = in.Scale
			def.Offset = in.Offset
		}
		if in.IntervalMs > 0 {
			def.Interval = time.Duration(in.IntervalMs) * time.Millisecond
		}
		return def, nil
	}

	if in.DataType == "" {
		return nil, response.ErrInvalidRegister(in.Name, "dataType or template required")
	}
	dataType, ok := modbus.DataTypeOf(in.DataType)
	if !ok {
		return nil, response.ErrInvalidRegister(in.Name, "unknown dataType "+in.DataType)
	}

	builder := poller.NewRegister(in.Name, *in.Address).DataType(dataType)
	if in.RegisterType != "" {
		registerType, ok := modbus.RegisterTypeOf(in.RegisterType)
		if !ok {
			return nil, response.ErrInvalidRegister(in.Name, "unknown registerType "+in.RegisterType)
		}
		builder.RegisterType(registerType)
	}
	if in.Unit != "" {
		builder.Unit(in.Unit)
	}
	if in.Scale != 0 {
		builder.ScaleOffset(in.Scale, in.Offset)
	}
	if in.IntervalMs > 0 {
		builder.Interval(time.Duration(in.IntervalMs) * time.Millisecond)
	}
	if in.DetectChange {
		builder.WithChangeDetection()
	}
	return builder.Build(), nil
}
