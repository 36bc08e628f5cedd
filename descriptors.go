package dlms

import "fmt"

// AttributeDescriptor identifies one attribute of a COSEM object.
type AttributeDescriptor struct {
	ClassId     uint16
	InstanceId  ObisCode
	AttributeId int8
}

func (d AttributeDescriptor) String() string {
	return fmt.Sprintf("class %d, obis %s, attribute %d", d.ClassId, d.InstanceId, d.AttributeId)
}

// MethodDescriptor identifies one method of a COSEM object.
type MethodDescriptor struct {
	ClassId    uint16
	InstanceId ObisCode
	MethodId   int8
}

func (d MethodDescriptor) String() string {
	return fmt.Sprintf("class %d, obis %s, method %d", d.ClassId, d.InstanceId, d.MethodId)
}
